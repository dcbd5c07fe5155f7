// Package locale resolves the display language from a device locale.
package locale

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// Fallback is used whenever the device language is not supported
const Fallback = "en"

// Supported lists the languages the bundled data is translated into
var Supported = []string{"de", "en", "es", "fr", "it", "pt"}

// IsSupported reports whether code is one of the supported languages
func IsSupported(code string) bool {
	for _, s := range Supported {
		if s == code {
			return true
		}
	}
	return false
}

// Resolve maps a locale string such as "fr-CA", "pt_BR.UTF-8" or "de" to its
// base language when that is supported, or Fallback otherwise. Related
// languages are not substituted: "gl" resolves to Fallback, not "es".
func Resolve(tag string) string {
	tag = normalize(tag)
	if tag == "" {
		return Fallback
	}
	t, err := language.Parse(tag)
	if err != nil {
		return Fallback
	}
	base, conf := t.Base()
	if conf == language.No {
		return Fallback
	}
	if IsSupported(base.String()) {
		return base.String()
	}
	return Fallback
}

// DeviceLanguage resolves the language from the POSIX locale environment
func DeviceLanguage() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return Resolve(v)
		}
	}
	return Fallback
}

// normalize strips the charset and modifier parts of a POSIX locale and
// rejects the C locale.
func normalize(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, ".@"); i >= 0 {
		tag = tag[:i]
	}
	tag = strings.ReplaceAll(tag, "_", "-")
	if tag == "C" || tag == "POSIX" {
		return ""
	}
	return tag
}
