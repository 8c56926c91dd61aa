package edgeshelf

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidName reports whether name can address an object in a store.
// Names are relative slash-separated paths: no leading or trailing slash,
// no empty, "." or ".." segments, no whitespace or control characters,
// and none of \ ? # ~.
func IsValidName(name string) bool {
	if name == "" || name == "/" || name == "." {
		return false
	}

	if name[0] == '/' || strings.HasSuffix(name, "/") {
		return false
	}

	if strings.Contains(name, "..") || strings.Contains(name, "//") {
		return false
	}

	if strings.ContainsAny(name, `\?#~`) {
		return false
	}

	if !utf8.ValidString(name) {
		return false
	}

	if strings.HasPrefix(name, "./") || strings.Contains(name, "/./") || strings.HasSuffix(name, "/.") {
		return false
	}

	for _, r := range name {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// BaseName returns the last segment of an object name.
func BaseName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
