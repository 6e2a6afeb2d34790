package epub

import (
	"fmt"
	"strings"
)

// NavPoint is a node of the nested navigation tree. PlayOrder numbers the
// nodes in pre-order, contiguously from 1, once per build.
type NavPoint struct {
	ID        string
	PlayOrder int
	Label     string
	Target    string
	Children  []*NavPoint
}

type tocBuilder struct {
	ignored   map[string]struct{}
	maxDepth  int
	playOrder int
}

func (b *tocBuilder) newNavPoint(e NavEntry) *NavPoint {
	b.playOrder++
	return &NavPoint{
		ID:        fmt.Sprintf("navPoint%d", b.playOrder),
		PlayOrder: b.playOrder,
		Label:     e.Label,
		Target:    e.Target,
	}
}

// duplicateNavPoint re-inserts the parent as the first child of the nesting
// it opens, so readers stepping through play order land on a stable anchor.
// It keeps the parent's play order and derives a fresh id from it.
func duplicateNavPoint(p *NavPoint) *NavPoint {
	return &NavPoint{
		ID:        p.ID + "s",
		PlayOrder: p.PlayOrder,
		Label:     p.Label,
		Target:    p.Target,
	}
}

// BuildNavPoints rebuilds the nested navigation tree from the flat entry
// sequence and reports the deepest level used. Entries without text, entries
// targeting ignored files and entries deeper than maxDepth are dropped and do
// not consume a play order number. Levels below one are treated as top level.
// A jump deeper by more than one level opens a single nesting step, no
// intermediate levels are synthesized.
func BuildNavPoints(entries []NavEntry, ignored map[string]struct{}, maxDepth int) ([]*NavPoint, int) {
	b := &tocBuilder{ignored: ignored, maxDepth: maxDepth}

	var stack [][]*NavPoint
	var navlist []*NavPoint
	level, depth := 1, 1

	fold := func() {
		finished := navlist
		navlist = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(navlist) == 0 {
			// sequence started below the top level, keep finished nodes as siblings
			navlist = finished
		} else {
			last := navlist[len(navlist)-1]
			last.Children = append(last.Children, finished...)
		}
		level--
	}

	for _, e := range entries {
		if len(e.Label) == 0 {
			continue
		}
		if _, drop := b.ignored[strippedFile(e.Target)]; drop {
			continue
		}
		if e.Level > b.maxDepth {
			continue
		}
		if e.Level < 1 {
			e.Level = 1
		}
		if e.Level > depth {
			depth = e.Level
		}
		switch {
		case e.Level == level:
			navlist = append(navlist, b.newNavPoint(e))
		case e.Level > level:
			parent := navlist
			stack = append(stack, parent)
			navlist = nil
			level++
			if len(parent) > 0 {
				navlist = append(navlist, duplicateNavPoint(parent[len(parent)-1]))
			}
			navlist = append(navlist, b.newNavPoint(e))
		default:
			for e.Level < level {
				fold()
			}
			navlist = append(navlist, b.newNavPoint(e))
		}
	}
	for level > 1 {
		fold()
	}
	return navlist, depth
}

// strippedFile returns the file part of a link target, without the fragment.
func strippedFile(target string) string {
	file, _, _ := strings.Cut(target, "#")
	return file
}
