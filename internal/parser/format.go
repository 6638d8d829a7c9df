package parser

import (
	"path/filepath"
	"sort"
	"strings"
)

// Format is the extraction family a file belongs to.
type Format string

const (
	FormatUnsupported Format = ""
	FormatImage       Format = "image"
	FormatPDF         Format = "pdf"
	FormatWord        Format = "word"
	FormatTabular     Format = "tabular"
	FormatArchive     Format = "archive"
)

// SupportedExtensions maps every handled file extension to its format.
var SupportedExtensions = map[string]Format{
	".png":  FormatImage,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
	".bmp":  FormatImage,
	".tiff": FormatImage,
	".gif":  FormatImage,
	".pdf":  FormatPDF,
	".docx": FormatWord,
	".doc":  FormatWord,
	".xlsx": FormatTabular,
	".xls":  FormatTabular,
	".csv":  FormatTabular,
	".zip":  FormatArchive,
}

// Resolve classifies a filename by extension. It never touches the file.
func Resolve(filename string) Format {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return Resolve(filename) != FormatUnsupported
}

// Extensions returns the supported extensions, sorted.
func Extensions() []string {
	out := make([]string, 0, len(SupportedExtensions))
	for ext := range SupportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
