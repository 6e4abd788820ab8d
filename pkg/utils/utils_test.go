package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage_RawBytes(t *testing.T) {
	raw := pngBytes(t)

	decoded, err := New().DecodeImage(raw, "")

	require.NoError(t, err)
	assert.Equal(t, "png", decoded.Format)
	assert.Equal(t, 8, decoded.Image.Bounds().Dx())
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), decoded.Base64)
	assert.Equal(t, "image/png", decoded.MIMEType())
	assert.Equal(t, "png", decoded.Extension())
}

func TestDecodeImage_Base64WithDataURI(t *testing.T) {
	raw := pngBytes(t)
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	decoded, err := New().DecodeImage(nil, encoded)

	require.NoError(t, err)
	assert.Equal(t, raw, decoded.Raw)
	assert.Equal(t, 4, decoded.Image.Bounds().Dy())
}

func TestDecodeImage_Base64Unpadded(t *testing.T) {
	raw := pngBytes(t)

	decoded, err := New().DecodeImage(nil, base64.RawStdEncoding.EncodeToString(raw))

	require.NoError(t, err)
	assert.Equal(t, raw, decoded.Raw)
}

func TestDecodeImage_Failures(t *testing.T) {
	u := New()

	_, err := u.DecodeImage(nil, "")
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = u.DecodeImage([]byte{}, "   ")
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = u.DecodeImage([]byte("definitely not an image"), "")
	assert.ErrorIs(t, err, ErrUndecodableImage)

	_, err = u.DecodeImage(nil, "data:image/png;base64,%%%")
	assert.ErrorIs(t, err, ErrInvalidBase64)

	_, err = u.DecodeImage(nil, base64.StdEncoding.EncodeToString([]byte("plain text")))
	assert.ErrorIs(t, err, ErrUndecodableImage)
}

func TestDecodeImage_SizeLimit(t *testing.T) {
	raw := pngBytes(t)

	_, err := NewWithLimits(int64(len(raw)-1), DefaultMaxPixels).DecodeImage(raw, "")
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestDecodeImage_PixelLimit(t *testing.T) {
	raw := pngBytes(t) // 8x4

	_, err := NewWithLimits(DefaultMaxFileSize, 31).DecodeImage(raw, "")
	assert.ErrorIs(t, err, ErrUndecodableImage)

	_, err = NewWithLimits(DefaultMaxFileSize, 31).DecodeImage(nil, base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrUndecodableImage)

	decoded, err := NewWithLimits(DefaultMaxFileSize, 32).DecodeImage(raw, "")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), decoded.Image.Bounds())
}

func TestDecodeImage_SmallUploadLargeRaster(t *testing.T) {
	// A blank 4000x3000 PNG compresses to a few KB but decodes to 12 MP.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4000, 3000))))
	require.Less(t, buf.Len(), 1024*1024)

	_, err := NewWithLimits(DefaultMaxFileSize, 10_000_000).DecodeImage(buf.Bytes(), "")
	assert.ErrorIs(t, err, ErrUndecodableImage)
}

func TestNewULIDFromTimestamp(t *testing.T) {
	id, err := New().NewULIDFromTimestamp(time.Now())

	require.NoError(t, err)
	assert.Len(t, id, 26)
}

func TestValidateImageFile_Nil(t *testing.T) {
	assert.ErrorIs(t, New().ValidateImageFile(nil), ErrNoImage)
}
