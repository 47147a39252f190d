package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/guidex/internal/layout"
)

// Parser converts raw document bytes into a positioned fragment stream.
type Parser interface {
	Parse(r io.Reader, filename string) (*layout.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".json": true,
}

// Options tune the parsers returned by ForFile.
type Options struct {
	// Validate runs a structural PDF check before text extraction so a
	// damaged file is reported as invalid rather than unreadable.
	Validate bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{Validate: opts.Validate}, nil
	case ".json":
		return &LayoutJSONParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}
