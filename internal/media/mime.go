package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ExtensionForMIME derives a file extension from a MIME type: the subtype
// before any parameters, or "bin" when there is none.
func ExtensionForMIME(mime string) string {
	base := strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	_, sub, ok := strings.Cut(base, "/")
	sub = strings.ToLower(strings.TrimSpace(sub))
	if !ok || sub == "" || strings.ContainsAny(sub, `/\.*?[`) {
		return "bin"
	}
	return sub
}

// IsImageMIME reports whether mime names an image type.
func IsImageMIME(mime string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), "image/")
}

// IsTextMIME reports whether mime names a text type.
func IsTextMIME(mime string) bool {
	m := strings.ToLower(strings.TrimSpace(mime))
	return strings.HasPrefix(m, "text/") || m == "utf8_string" || m == "string" || m == "text"
}

// Sniff detects the MIME type of data from its content.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}
