package epub

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"s2e/config"
	"s2e/site"
)

// NavEntry is a single item of the flat navigation sequence: a link target
// with its display text and nesting depth. Label keeps text exactly as it
// appears in the source, serialization takes care of escaping.
type NavEntry struct {
	Level  int
	Target string
	Label  string
}

// CollectReferences produces the flat navigation sequence for the site:
// front matter documents, the master document, references from the resolved
// doctree in document order and back matter documents. Additional documents
// always enter at the top level.
func CollectReferences(s *site.Site, cfg *config.EpubConfig) []NavEntry {
	var entries []NavEntry
	for _, f := range cfg.PreFiles {
		entries = append(entries, NavEntry{Level: 1, Target: f.File, Label: f.Title})
	}
	entries = append(entries, NavEntry{
		Level:  1,
		Target: s.Master + ".html",
		Label:  s.Title(s.Master),
	})
	entries = append(entries, doctreeReferences(s.Doctree)...)
	for _, f := range cfg.PostFiles {
		entries = append(entries, NavEntry{Level: 1, Target: f.File, Label: f.Title})
	}
	return entries
}

func doctreeReferences(doc *etree.Document) []NavEntry {
	var entries []NavEntry
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if e.Tag == "reference" {
			if uri := e.SelectAttrValue("refuri", ""); len(uri) > 0 {
				entries = append(entries, NavEntry{
					Level:  referenceLevel(e),
					Target: uri,
					Label:  flattenText(e),
				})
			}
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	return entries
}

// referenceLevel derives nesting depth from the class the site builder puts
// on the enclosing list item. When several depth classes are present the
// deepest one wins.
func referenceLevel(e *etree.Element) int {
	parent := e.Parent()
	if parent == nil {
		return 1
	}
	level := 1
	for _, class := range strings.Fields(parent.SelectAttrValue("classes", "")) {
		rest, ok := strings.CutPrefix(class, "toctree-l")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > level {
			level = n
		}
	}
	return level
}

func flattenText(e *etree.Element) string {
	var sb strings.Builder
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, t := range e.Child {
			switch n := t.(type) {
			case *etree.CharData:
				sb.WriteString(n.Data)
			case *etree.Element:
				walk(n)
			}
		}
	}
	walk(e)
	return sb.String()
}
