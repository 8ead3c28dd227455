package server

import (
	"path"
	"strings"
)

// defaultMIMETypes maps file extensions (without the dot) to media types.
var defaultMIMETypes = map[string]string{
	"html": "text/html; charset=utf-8",
	"htm":  "text/html; charset=utf-8",
	"css":  "text/css; charset=utf-8",
	"js":   "text/javascript; charset=utf-8",
	"mjs":  "text/javascript; charset=utf-8",
	"json": "application/json; charset=utf-8",
	"map":  "application/json; charset=utf-8",
	"xml":  "text/xml; charset=utf-8",
	"txt":  "text/plain; charset=utf-8",
	"md":   "text/plain; charset=utf-8",
	"svg":  "image/svg+xml",
	"png":  "image/png",
	"gif":  "image/gif",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"ico":  "image/x-icon",
	"wasm": "application/wasm",
	"woff": "font/woff",
	"woff2": "font/woff2",
	"ttf":  "font/ttf",
	"otf":  "font/otf",
	"pdf":  "application/pdf",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mp3":  "audio/mpeg",
}

// defaultCompressibleTypes lists the media types (parameters stripped) that
// benefit from gzip compression.
var defaultCompressibleTypes = []string{
	"text/html",
	"text/css",
	"text/javascript",
	"text/plain",
	"text/xml",
	"application/json",
	"application/javascript",
	"application/xml",
	"image/svg+xml",
	"application/wasm",
	"font/woff",
}

// MIMETable resolves file extensions to media types and answers whether a
// media type is worth compressing. Immutable after construction.
type MIMETable struct {
	types        map[string]string
	compressible map[string]bool
}

func newMIMETable(extra map[string]string, extraCompressible []string) *MIMETable {
	t := &MIMETable{
		types:        make(map[string]string, len(defaultMIMETypes)+len(extra)),
		compressible: make(map[string]bool, len(defaultCompressibleTypes)+len(extraCompressible)),
	}
	for ext, mt := range defaultMIMETypes {
		t.types[ext] = mt
	}
	for ext, mt := range extra {
		t.types[strings.ToLower(strings.TrimPrefix(ext, "."))] = mt
	}
	for _, mt := range defaultCompressibleTypes {
		t.compressible[mt] = true
	}
	for _, mt := range extraCompressible {
		t.compressible[strings.ToLower(mt)] = true
	}
	return t
}

// TypeFor returns the media type for the given file name or path, or the
// empty string when the extension is unknown.
func (t *MIMETable) TypeFor(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	return t.types[ext]
}

// IsCompressible reports whether content of the given media type is worth
// gzip compression. Media type parameters are ignored.
func (t *MIMETable) IsCompressible(mediaType string) bool {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return t.compressible[strings.ToLower(strings.TrimSpace(mediaType))]
}
