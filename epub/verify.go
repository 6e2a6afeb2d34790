package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"s2e/archive"
)

// Verify checks structural consistency of a produced package: marker entry
// placement and compression, the container pointer, manifest and spine cross
// references and navigation play order. All findings are collected and
// reported together.
func Verify(path string, log *zap.Logger) error {

	type entry struct {
		name   string
		method uint16
	}
	var entries []entry
	content := make(map[string][]byte)

	err := archive.Walk(path, "", func(_ string, f *zip.File) error {
		entries = append(entries, entry{name: f.Name, method: f.Method})
		switch f.Name {
		case mimetypeFile, containerFile, contentFile, tocFile:
			r, err := f.Open()
			if err != nil {
				return err
			}
			defer r.Close()
			data, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			content[f.Name] = data
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("archive has no entries")
	}

	var result error

	if entries[0].name != mimetypeFile {
		result = multierr.Append(result, fmt.Errorf("first entry is %q, expected %q", entries[0].name, mimetypeFile))
	} else if entries[0].method != zip.Store {
		result = multierr.Append(result, fmt.Errorf("entry %q is compressed, expected stored", mimetypeFile))
	} else if !bytes.Equal(content[mimetypeFile], []byte(mimetypeContent)) {
		result = multierr.Append(result, fmt.Errorf("entry %q has unexpected content", mimetypeFile))
	}

	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		present[e.name] = struct{}{}
	}

	result = multierr.Append(result, verifyContainer(content[containerFile]))
	result = multierr.Append(result, verifyPackageDoc(content[contentFile], present))
	result = multierr.Append(result, verifyNavigation(content[tocFile]))

	if result == nil {
		log.Info("Package is consistent", zap.String("file", path), zap.Int("entries", len(entries)))
	}
	return result
}

func verifyContainer(data []byte) error {
	if data == nil {
		return fmt.Errorf("archive has no %q entry", containerFile)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("unable to parse %q: %w", containerFile, err)
	}
	rootfile := doc.FindElement("//rootfile")
	if rootfile == nil {
		return fmt.Errorf("%q names no root file", containerFile)
	}
	if p := rootfile.SelectAttrValue("full-path", ""); p != contentFile {
		return fmt.Errorf("%q points at %q, expected %q", containerFile, p, contentFile)
	}
	return nil
}

func verifyPackageDoc(data []byte, present map[string]struct{}) error {
	if data == nil {
		return fmt.Errorf("archive has no %q entry", contentFile)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("unable to parse %q: %w", contentFile, err)
	}

	var result error

	ids := make(map[string]struct{})
	for _, item := range doc.FindElements("//manifest/item") {
		id := item.SelectAttrValue("id", "")
		if len(id) == 0 {
			result = multierr.Append(result, fmt.Errorf("manifest item without id"))
			continue
		}
		if _, dup := ids[id]; dup {
			result = multierr.Append(result, fmt.Errorf("manifest id %q is not unique", id))
		}
		ids[id] = struct{}{}

		href := item.SelectAttrValue("href", "")
		if _, ok := present[href]; !ok {
			result = multierr.Append(result, fmt.Errorf("manifest item %q names missing entry %q", id, href))
		}
	}

	for _, itemref := range doc.FindElements("//spine/itemref") {
		idref := itemref.SelectAttrValue("idref", "")
		if _, ok := ids[idref]; !ok {
			result = multierr.Append(result, fmt.Errorf("spine reference %q does not resolve to a manifest item", idref))
		}
	}
	return result
}

// verifyNavigation checks that navigation ids are unique and play order
// numbers are contiguous in pre-order. A repeated number is allowed when it
// re-links an already numbered node into a deeper nesting.
func verifyNavigation(data []byte) error {
	if data == nil {
		return fmt.Errorf("archive has no %q entry", tocFile)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("unable to parse %q: %w", tocFile, err)
	}

	var result error

	ids := make(map[string]struct{})
	maxSeen := 0
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, np := range e.SelectElements("navPoint") {
			id := np.SelectAttrValue("id", "")
			if _, dup := ids[id]; dup {
				result = multierr.Append(result, fmt.Errorf("navigation id %q is not unique", id))
			}
			ids[id] = struct{}{}

			po, err := strconv.Atoi(np.SelectAttrValue("playOrder", ""))
			switch {
			case err != nil || po < 1:
				result = multierr.Append(result, fmt.Errorf("navigation node %q has invalid play order", id))
			case po == maxSeen+1:
				maxSeen = po
			case po > maxSeen:
				result = multierr.Append(result, fmt.Errorf("navigation node %q breaks play order sequence: got %d after %d", id, po, maxSeen))
			}
			walk(np)
		}
	}
	navMap := doc.FindElement("//navMap")
	if navMap == nil {
		return fmt.Errorf("%q has no navigation map", tocFile)
	}
	walk(navMap)
	return result
}
