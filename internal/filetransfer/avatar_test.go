package filetransfer

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes() []byte {
	magic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return append(magic, make([]byte, 100)...)
}

func TestDecodeAvatarValidPNG(t *testing.T) {
	data := base64.StdEncoding.EncodeToString(pngBytes())
	av, ok := DecodeAvatar("image/png", "base64", data)
	require.True(t, ok)
	assert.Equal(t, "image/png", av.MIMEType)
}

func TestDecodeAvatarRejectsMimeMismatch(t *testing.T) {
	data := base64.StdEncoding.EncodeToString(pngBytes())
	_, ok := DecodeAvatar("image/jpeg", "base64", data)
	assert.False(t, ok, "PNG magic bytes declared as jpeg must fail")
}

func TestDecodeAvatarRejectsOversize(t *testing.T) {
	magic := []byte{0xFF, 0xD8, 0xFF}
	oversized := append(magic, make([]byte, AvatarMaxSize+1)...)
	data := base64.StdEncoding.EncodeToString(oversized)
	_, ok := DecodeAvatar("image/jpeg", "base64", data)
	assert.False(t, ok)
}

func TestDecodeAvatarJpgAliasTolerated(t *testing.T) {
	magic := []byte{0xFF, 0xD8, 0xFF}
	data := base64.StdEncoding.EncodeToString(append(magic, make([]byte, 20)...))
	_, ok := DecodeAvatar("image/jpg", "base64", data)
	assert.True(t, ok, "image/jpg must be tolerated as an alias of image/jpeg")
}

func TestDecodeAvatarMissingFieldsFails(t *testing.T) {
	_, ok := DecodeAvatar("", "base64", "x")
	assert.False(t, ok)
}
