package constants

import (
	"path/filepath"
	"strings"
)

// AllowedExtensions holds the default allowed file extensions for document ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"gif":  {},
	"tiff": {},
	"tif":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

var extToMIME = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"gif":  "image/gif",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
}

// MIMETypeForPath guesses a MIME type from the file extension.
// Returns "" when the extension is unknown.
func MIMETypeForPath(path string) string {
	return extToMIME[NormalizeExt(filepath.Ext(path))]
}

// DocumentMIMETypes are the multi-page document formats a structure-oriented
// provider handles better than line OCR.
var DocumentMIMETypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.ms-powerpoint":                                             {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
}
