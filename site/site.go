// Package site reads the output of the documentation site builder: the
// rendered file tree plus the build metadata it leaves behind (resolved
// master doctree and document titles).
package site

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
	yaml "gopkg.in/yaml.v3"
)

// MetaDir is the directory inside the rendered tree where the site builder
// keeps its build metadata. Nothing under it enters the package.
const MetaDir = ".site"

const (
	doctreeFile = "doctree.xml"
	siteFile    = "site.yaml"
)

// Site describes rendered documentation produced by the site builder.
type Site struct {
	Dir     string
	Master  string
	Titles  map[string]string
	Doctree *etree.Document
}

type siteMeta struct {
	Master string            `yaml:"master"`
	Titles map[string]string `yaml:"titles"`
}

// Load reads site builder metadata from the rendered tree at dir. The
// resolved doctree of the master document has all toctrees expanded and all
// links fixed - it is the source of the flat navigation sequence.
func Load(dir string) (*Site, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaDir, siteFile))
	if err != nil {
		return nil, fmt.Errorf("unable to read site description: %w", err)
	}

	var meta siteMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unable to parse site description: %w", err)
	}
	if len(meta.Master) == 0 {
		return nil, fmt.Errorf("site description does not name a master document")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(filepath.Join(dir, MetaDir, doctreeFile)); err != nil {
		return nil, fmt.Errorf("unable to read resolved doctree for %q: %w", meta.Master, err)
	}

	if meta.Titles == nil {
		meta.Titles = make(map[string]string)
	}
	return &Site{
		Dir:     dir,
		Master:  meta.Master,
		Titles:  meta.Titles,
		Doctree: doc,
	}, nil
}

// Title returns title text for a document, falling back to its name.
func (s *Site) Title(doc string) string {
	if t, ok := s.Titles[doc]; ok && len(t) > 0 {
		return t
	}
	return doc
}
