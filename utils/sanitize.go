package utils

import (
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeHeaderFilename returns the base name of name with quotes and control
// characters removed, so it can sit inside a quoted Content-Disposition value.
func SanitizeHeaderFilename(name string) string {
	base := path.Base(filepath.ToSlash(strings.TrimSpace(name)))
	clean := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, base)
	clean = strings.TrimSpace(clean)
	if clean == "" || clean == "." || clean == "/" {
		return "download"
	}
	return clean
}

// ASCIIFilename folds name to printable ASCII for the quoted filename
// parameter. Other runes become '_'.
func ASCIIFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '_'
		}
		return r
	}, SanitizeHeaderFilename(name))
}
