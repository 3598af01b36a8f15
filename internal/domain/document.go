package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Format tags the detected file format of an uploaded document.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Document is a named byte blob belonging to one project. Immutable once
// stored; re-uploading the same name overwrites the stored bytes and the
// fingerprint reflects the latest bytes.
type Document struct {
	Name   string
	Format Format
	Data   []byte
}

// DetectFormat maps a file name to its format tag. Unknown extensions are
// treated as plain text.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".html", ".htm":
		return FormatHTML
	case ".json":
		return FormatJSON
	default:
		return FormatText
	}
}

// fingerprintLen is the number of hex characters kept from the sha256 digest.
// Part of the chunk identity format; do not change casually.
const fingerprintLen = 12

// Fingerprint returns the content fingerprint of the document's raw bytes.
func (d Document) Fingerprint() string {
	return FingerprintBytes(d.Data)
}

// FingerprintBytes returns the short sha256 fingerprint of a byte slice.
func FingerprintBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
