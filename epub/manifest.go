package epub

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"s2e/site"
)

// Item is a single manifest entry of the package.
type Item struct {
	ID        string
	Href      string
	MediaType string
}

// Media types the package format allows, keyed by file extension. Anything
// else stays out of the package.
var mediaTypes = map[string]string{
	".html": "application/xhtml+xml",
	".css":  "text/css",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".otf":  "application/x-font-otf",
	".ttf":  "application/x-font-ttf",
}

var idReplacer = strings.NewReplacer("/", "_", " ", "")

// MakeID derives a manifest id from a relative path. Path separators become
// underscores and spaces are removed, so the same path always maps to the
// same id.
func MakeID(path string) string {
	return idReplacer.Replace(path)
}

// IgnoredFiles lists files which never enter the package: site builder
// leftovers, the package documents themselves, the archive being produced and
// user configured exclusions.
func IgnoredFiles(basename string, exclude []string) map[string]struct{} {
	ignored := make(map[string]struct{})
	for _, f := range []string{".buildinfo", mimetypeFile, contentFile, tocFile, containerFile, basename + ".epub"} {
		ignored[f] = struct{}{}
	}
	for _, f := range exclude {
		ignored[f] = struct{}{}
	}
	return ignored
}

// BuildManifest enumerates rendered files under dir, drops ignored ones and
// classifies the rest by extension. Files with an unrecognized extension are
// skipped with a warning. Items are ordered naturally by path so the output
// is stable between runs.
func BuildManifest(dir string, ignored map[string]struct{}, log *zap.Logger) ([]Item, error) {

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == site.MetaDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, drop := ignored[rel]; drop {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return natural.Less(files[i], files[j])
	})

	items := make([]Item, 0, len(files))
	for _, f := range files {
		mt, ok := mediaTypes[filepath.Ext(f)]
		if !ok {
			log.Warn("File has unknown media type, excluding from package",
				zap.String("file", f),
				zap.String("detected", sniffType(filepath.Join(dir, filepath.FromSlash(f)))))
			continue
		}
		items = append(items, Item{ID: MakeID(f), Href: f, MediaType: mt})
	}
	return items, nil
}

// BuildSpine derives the linear reading order from the flat navigation
// sequence. Same-document fragments and ignored files are skipped, repeated
// references stay repeated.
func BuildSpine(entries []NavEntry, ignored map[string]struct{}) []string {
	var spine []string
	for _, e := range entries {
		if strings.Contains(e.Target, "#") {
			continue
		}
		if _, drop := ignored[e.Target]; drop {
			continue
		}
		spine = append(spine, MakeID(e.Target))
	}
	return spine
}

// sniffType peeks at file content to make unknown media type warnings more
// actionable.
func sniffType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	head := make([]byte, 261)
	n, _ := io.ReadFull(f, head)
	t, err := filetype.Match(head[:n])
	if err != nil || t == filetype.Unknown {
		return "unknown"
	}
	return t.MIME.Value
}
