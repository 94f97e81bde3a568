package clipboard

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PreferredImageTypes are tried in order before any other image type.
var PreferredImageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/bmp"}

// TextType is the MIME type requested for the text channel.
const TextType = "text/plain"

func baseType(mime string) string {
	return strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
}

// SelectImageMIME picks the image type to read from the advertised list,
// or "" when no image is offered.
func SelectImageMIME(advertised []string) string {
	for _, want := range PreferredImageTypes {
		for _, t := range advertised {
			if baseType(t) == want {
				return t
			}
		}
	}
	for _, t := range advertised {
		if strings.HasPrefix(baseType(t), "image/") {
			return t
		}
	}
	return ""
}

// SelectTextMIME picks a plain-text type from the advertised list, or "".
func SelectTextMIME(advertised []string) string {
	for _, t := range advertised {
		if baseType(t) == TextType {
			return t
		}
	}
	for _, t := range advertised {
		switch t {
		case "UTF8_STRING", "STRING", "TEXT":
			return t
		}
	}
	return ""
}

// SelectMIME applies the capture priority: an image type if any is
// advertised, else plain text, else the first advertised type.
func SelectMIME(advertised []string) string {
	if t := SelectImageMIME(advertised); t != "" {
		return t
	}
	if t := SelectTextMIME(advertised); t != "" {
		return t
	}
	if len(advertised) > 0 {
		return advertised[0]
	}
	return ""
}

// Hash returns the lowercase hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Channel is the change-detection state of one sampled clipboard channel.
type Channel struct {
	LastSeenHash string
}

// Observe folds one sample into the channel state. An empty sample clears
// the state so the same content reappearing later counts as new. changed is
// true only for a non-empty sample whose hash differs from the last one seen.
func Observe(prev Channel, sample []byte) (next Channel, hash string, changed bool) {
	if len(sample) == 0 {
		return Channel{}, "", false
	}
	hash = Hash(sample)
	if hash == prev.LastSeenHash {
		return prev, hash, false
	}
	return Channel{LastSeenHash: hash}, hash, true
}
