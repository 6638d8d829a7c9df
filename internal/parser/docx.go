package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXParser handles Word documents: body paragraphs, then table rows, then
// header and footer paragraphs.
type DOCXParser struct{}

func (p *DOCXParser) Parse(_ context.Context, filePath string) Result {
	f, err := os.Open(filePath)
	if err != nil {
		return failed("processing Word document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return failed("processing Word document: %w", err)
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return failed("processing Word document: parse docx: %w", err)
	}

	var paragraphs, rows []string
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			if text := docxParagraphText(it); text != "" {
				paragraphs = append(paragraphs, text)
			}
		case *docx.Table:
			rows = append(rows, docxTableRows(it)...)
		}
	}

	headers, footers, err := docxHeaderFooter(f, info.Size())
	if err != nil {
		return failed("processing Word document: %w", err)
	}

	all := make([]string, 0, len(paragraphs)+len(rows)+len(headers)+len(footers))
	all = append(all, paragraphs...)
	all = append(all, rows...)
	for _, h := range headers {
		all = append(all, "[HEADER] "+h)
	}
	for _, ft := range footers {
		all = append(all, "[FOOTER] "+ft)
	}
	return textOrEmpty(strings.Join(all, "\n"))
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func docxTableRows(tbl *docx.Table) []string {
	var out []string
	for _, row := range tbl.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				if text := docxParagraphText(para); text != "" {
					parts = append(parts, text)
				}
			}
			cells = append(cells, strings.Join(parts, "\n"))
		}
		if line := joinCells(cells); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// docxHeaderFooter reads word/header*.xml and word/footer*.xml directly; the
// docx library only models the main document part.
func docxHeaderFooter(r io.ReaderAt, size int64) (headers, footers []string, err error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, nil, fmt.Errorf("open docx package: %w", err)
	}

	var headerParts, footerParts []*zip.File
	for _, zf := range zr.File {
		dir, name := path.Split(zf.Name)
		if dir != "word/" || path.Ext(name) != ".xml" {
			continue
		}
		switch {
		case strings.HasPrefix(name, "header"):
			headerParts = append(headerParts, zf)
		case strings.HasPrefix(name, "footer"):
			footerParts = append(footerParts, zf)
		}
	}
	byName := func(parts []*zip.File) {
		sort.Slice(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })
	}
	byName(headerParts)
	byName(footerParts)

	for _, zf := range headerParts {
		paras, err := readPartParagraphs(zf)
		if err != nil {
			return nil, nil, err
		}
		headers = append(headers, paras...)
	}
	for _, zf := range footerParts {
		paras, err := readPartParagraphs(zf)
		if err != nil {
			return nil, nil, err
		}
		footers = append(footers, paras...)
	}
	return headers, footers, nil
}

func readPartParagraphs(zf *zip.File) ([]string, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", zf.Name, err)
	}
	defer rc.Close()
	paras, err := ooxmlParagraphs(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", zf.Name, err)
	}
	return paras, nil
}

// ooxmlParagraphs collects the text runs of every w:p element.
func ooxmlParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var paras []string
	var buf strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteString("\t")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(buf.String()); s != "" {
					paras = append(paras, s)
				}
				buf.Reset()
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	return paras, nil
}
