package site

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const linkTargetClass = "link-target"

// AddLinkTargets rewrites rendered pages under dir appending the link target
// to every external reference, unless it is already present in the link text.
// E-book readers render pages offline, so the target would otherwise be lost.
func AddLinkTargets(dir string, log *zap.Logger) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == MetaDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		changed, err := addLinkTargetsToFile(path)
		if err != nil {
			return err
		}
		if changed > 0 {
			log.Debug("Added visible link targets", zap.String("file", path), zap.Int("links", changed))
		}
		return nil
	})
}

func addLinkTargetsToFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}

	var anchors []*html.Node
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			anchors = append(anchors, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(doc)

	changed := 0
	for _, a := range anchors {
		uri := attrValue(a, "href")
		if !isExternalRef(uri) || strings.Contains(nodeText(a), uri) {
			continue
		}
		if hasVisibleTarget(a, uri) {
			continue
		}
		span := &html.Node{
			Type: html.ElementNode,
			Data: "span",
			Attr: []html.Attribute{{Key: "class", Val: linkTargetClass}},
		}
		span.AppendChild(&html.Node{Type: html.TextNode, Data: " [" + uri + "]"})
		a.Parent.InsertBefore(span, a.NextSibling)
		changed++
	}
	if changed == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return 0, err
	}
	return changed, os.WriteFile(path, buf.Bytes(), 0644)
}

// hasVisibleTarget reports whether the node right after the anchor is a
// link-target span already showing uri, left there by a previous run.
func hasVisibleTarget(a *html.Node, uri string) bool {
	next := a.NextSibling
	if next == nil || next.Type != html.ElementNode || next.Data != "span" {
		return false
	}
	if attrValue(next, "class") != linkTargetClass {
		return false
	}
	return strings.Contains(nodeText(next), uri)
}

func isExternalRef(uri string) bool {
	return strings.HasPrefix(uri, "http:") || strings.HasPrefix(uri, "https:") || strings.HasPrefix(uri, "ftp:")
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
