package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SourceFromFile reads a workbook document from disk.
func SourceFromFile(path string, year int) (Source, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Source{}, err
	}
	return SourceFromBytes(filepath.Base(path), blob, year)
}

// SourceFromBytes turns a named document into a Source. The extension picks
// the reader: pdf, xlsx, rtf, eml, html/htm, txt.
func SourceFromBytes(name string, blob []byte, year int) (Source, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "pdf":
		text, err := TextFromPDF(blob)
		if err != nil {
			return Source{}, err
		}
		return Source{Text: text, Year: year}, nil
	case "xlsx":
		text, err := TextFromXLSX(blob)
		if err != nil {
			return Source{}, err
		}
		return Source{Text: text, Year: year}, nil
	case "rtf":
		return Source{Text: TextFromRTF(blob), Year: year}, nil
	case "eml":
		return SourceFromEmail(blob, year)
	case "html", "htm":
		return Source{HTML: string(blob), Year: year}, nil
	case "txt", "text":
		return Source{Text: string(blob), Year: year}, nil
	default:
		return Source{}, fmt.Errorf("unsupported input type: %s", ext)
	}
}
