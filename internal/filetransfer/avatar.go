package filetransfer

import (
	"bytes"
	"encoding/base64"
	"strings"
	"time"
)

// AvatarMaxSize is the maximum size after base64 decode (spec.md §4.9).
const AvatarMaxSize = 20 * 1024

// avatarMagic maps a MIME type to its expected magic bytes, grounded on
// original_source/src/utils/file_utils.py's _validate_image_format.
// image/jpg is kept as an alias of image/jpeg per spec.md's explicit
// preservation of that tolerance.
var avatarMagic = map[string][]byte{
	"image/png":  {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
	"image/jpeg": {0xFF, 0xD8, 0xFF},
	"image/jpg":  {0xFF, 0xD8, 0xFF},
	"image/gif":  {'G', 'I', 'F', '8'},
	"image/bmp":  {'B', 'M'},
	"image/webp": {'R', 'I', 'F', 'F'},
}

// validMIME reports whether mime is one of the supported avatar formats.
func validMIME(mime string) bool {
	_, ok := avatarMagic[strings.ToLower(mime)]
	return ok
}

// Avatar is a decoded, validated profile picture.
type Avatar struct {
	MIMEType  string
	Data      []byte
	CachedAt  time.Time
}

// DecodeAvatar validates and decodes a PROFILE's AVATAR_* fields. It
// returns ok=false (never an error) for any invalid avatar per spec.md
// §4.9: "Invalid avatars are dropped without affecting the rest of the
// PROFILE."
func DecodeAvatar(mimeType, encoding, data string) (Avatar, bool) {
	if mimeType == "" || encoding == "" || data == "" {
		return Avatar{}, false
	}
	if strings.ToLower(encoding) != "base64" {
		return Avatar{}, false
	}
	if !validMIME(mimeType) {
		return Avatar{}, false
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Avatar{}, false
	}
	if len(raw) > AvatarMaxSize {
		return Avatar{}, false
	}
	if !matchesMagic(raw, mimeType) {
		return Avatar{}, false
	}

	return Avatar{MIMEType: mimeType, Data: raw, CachedAt: time.Now()}, true
}

func matchesMagic(data []byte, mimeType string) bool {
	if len(data) < 8 {
		return false
	}
	magic, ok := avatarMagic[strings.ToLower(mimeType)]
	if !ok {
		// Unknown-but-accepted format: validMIME already gated the set,
		// so this branch is unreachable in practice; kept to mirror the
		// original's "unknown format, allow it" fallback.
		return true
	}
	return bytes.HasPrefix(data, magic)
}

// AvatarCacheTTL is the eviction age for cached avatars, applied by the
// housekeeping task (spec.md §4.12).
const AvatarCacheTTL = 30 * 24 * time.Hour

// Expired reports whether the avatar should be evicted by housekeeping.
func (a Avatar) Expired(now time.Time) bool {
	return now.Sub(a.CachedAt) > AvatarCacheTTL
}
