// Package epub turns a rendered documentation tree into an e-book package:
// it rebuilds the nested navigation from the flat reference sequence, derives
// the manifest and the reading order from the rendered files and bundles
// everything into the output archive.
package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"
)

const (
	mimetypeContent = "application/epub+zip"
	mimetypeFile    = "mimetype"
	metaInfDir      = "META-INF"
	containerFile   = "META-INF/container.xml"
	contentFile     = "content.opf"
	tocFile         = "toc.ncx"
)

// Metadata holds descriptive fields of the package. UID is the XML id token
// naming the unique identifier, Identifier its value.
type Metadata struct {
	Title      string
	Author     string
	Language   string
	Publisher  string
	Rights     string
	Identifier string
	Scheme     string
	UID        string
}

// Package gathers everything needed to produce the output archive.
type Package struct {
	Dir      string
	Basename string
	Meta     Metadata
	Items    []Item
	Spine    []string
	NavMap   []*NavPoint
	Depth    int
	FixZip   bool
}

// Generate writes the package documents into the rendered tree and bundles
// them with the content files into the output archive. It returns the path
// of the produced archive.
func (p *Package) Generate(log *zap.Logger) (string, error) {
	if err := p.writeMimetype(); err != nil {
		return "", fmt.Errorf("unable to write mimetype: %w", err)
	}
	if err := p.writeContainer(); err != nil {
		return "", fmt.Errorf("unable to write container: %w", err)
	}
	if err := p.writeOPF(); err != nil {
		return "", fmt.Errorf("unable to write package document: %w", err)
	}
	if err := p.writeNCX(); err != nil {
		return "", fmt.Errorf("unable to write navigation document: %w", err)
	}

	out := filepath.Join(p.Dir, p.Basename+".epub")
	if err := p.writeArchive(out, log); err != nil {
		return "", fmt.Errorf("unable to write archive: %w", err)
	}
	return out, nil
}

func (p *Package) writeMimetype() error {
	// exact bytes, no trailing newline
	return os.WriteFile(filepath.Join(p.Dir, mimetypeFile), []byte(mimetypeContent), 0644)
}

func (p *Package) writeContainer() error {
	if err := os.Mkdir(filepath.Join(p.Dir, metaInfDir), 0755); err != nil && !os.IsExist(err) {
		return err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")

	rootfiles := container.CreateElement("rootfiles")
	rootfile := rootfiles.CreateElement("rootfile")
	rootfile.CreateAttr("full-path", contentFile)
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")

	return doc.WriteToFile(filepath.Join(p.Dir, metaInfDir, "container.xml"))
}

func (p *Package) writeOPF() error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("version", "2.0")
	pkg.CreateAttr("unique-identifier", p.Meta.UID)

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	dcLang := metadata.CreateElement("dc:language")
	dcLang.SetText(p.Meta.Language)

	dcTitle := metadata.CreateElement("dc:title")
	dcTitle.SetText(p.Meta.Title)

	if len(p.Meta.Author) > 0 {
		dcCreator := metadata.CreateElement("dc:creator")
		dcCreator.CreateAttr("opf:role", "aut")
		dcCreator.SetText(p.Meta.Author)
	}
	if len(p.Meta.Publisher) > 0 {
		dcPublisher := metadata.CreateElement("dc:publisher")
		dcPublisher.SetText(p.Meta.Publisher)
	}
	if len(p.Meta.Rights) > 0 {
		dcRights := metadata.CreateElement("dc:rights")
		dcRights.SetText(p.Meta.Rights)
	}

	dcIdentifier := metadata.CreateElement("dc:identifier")
	dcIdentifier.CreateAttr("id", p.Meta.UID)
	if len(p.Meta.Scheme) > 0 {
		dcIdentifier.CreateAttr("opf:scheme", p.Meta.Scheme)
	}
	dcIdentifier.SetText(p.Meta.Identifier)

	manifest := pkg.CreateElement("manifest")

	ncxItem := manifest.CreateElement("item")
	ncxItem.CreateAttr("id", "ncx")
	ncxItem.CreateAttr("href", tocFile)
	ncxItem.CreateAttr("media-type", "application/x-dtbncx+xml")

	for _, it := range p.Items {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", it.ID)
		item.CreateAttr("href", it.Href)
		item.CreateAttr("media-type", it.MediaType)
	}

	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", "ncx")
	for _, idref := range p.Spine {
		itemref := spine.CreateElement("itemref")
		itemref.CreateAttr("idref", idref)
	}

	return doc.WriteToFile(filepath.Join(p.Dir, contentFile))
}

func (p *Package) writeNCX() error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")

	head := ncx.CreateElement("head")

	metaUID := head.CreateElement("meta")
	metaUID.CreateAttr("name", "dtb:uid")
	metaUID.CreateAttr("content", p.Meta.Identifier)

	metaDepth := head.CreateElement("meta")
	metaDepth.CreateAttr("name", "dtb:depth")
	metaDepth.CreateAttr("content", strconv.Itoa(p.Depth))

	metaTotal := head.CreateElement("meta")
	metaTotal.CreateAttr("name", "dtb:totalPageCount")
	metaTotal.CreateAttr("content", "0")

	metaMax := head.CreateElement("meta")
	metaMax.CreateAttr("name", "dtb:maxPageNumber")
	metaMax.CreateAttr("content", "0")

	docTitle := ncx.CreateElement("docTitle")
	text := docTitle.CreateElement("text")
	text.SetText(p.Meta.Title)

	navMap := ncx.CreateElement("navMap")
	for _, np := range p.NavMap {
		writeNavPoint(navMap, np)
	}

	return doc.WriteToFile(filepath.Join(p.Dir, tocFile))
}

func writeNavPoint(parent *etree.Element, np *NavPoint) {
	navPoint := parent.CreateElement("navPoint")
	navPoint.CreateAttr("id", np.ID)
	navPoint.CreateAttr("playOrder", strconv.Itoa(np.PlayOrder))

	navLabel := navPoint.CreateElement("navLabel")
	text := navLabel.CreateElement("text")
	text.SetText(np.Label)

	content := navPoint.CreateElement("content")
	content.CreateAttr("src", np.Target)

	for _, child := range np.Children {
		writeNavPoint(navPoint, child)
	}
}

func (p *Package) writeArchive(out string, log *zap.Logger) error {
	tmpName := out + ".tmp"

	f, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	// readers identify the format by the first bytes of the archive, the
	// marker entry goes first and stays uncompressed
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   mimetypeFile,
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, mimetypeContent); err != nil {
		return err
	}

	for _, name := range []string{containerFile, contentFile, tocFile} {
		if err := p.addFile(zw, name); err != nil {
			return err
		}
	}
	for _, it := range p.Items {
		if err := p.addFile(zw, it.Href); err != nil {
			return err
		}
	}

	// make sure buffers are flushed before continuing
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	// clean temporary file
	defer os.Remove(tmpName)

	log.Debug("Archived package", zap.String("file", out), zap.Int("files", len(p.Items)+4))

	if p.FixZip {
		return copyZipWithoutDataDescriptors(tmpName, out)
	}
	return os.Rename(tmpName, out)
}

func (p *Package) addFile(zw *zip.Writer, name string) error {
	f, err := os.Open(filepath.Join(p.Dir, filepath.FromSlash(name)))
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func copyZipWithoutDataDescriptors(from, to string) error {

	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		// copy zip entry
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}
