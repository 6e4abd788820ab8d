package utils

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	ErrNoImage          = errors.New("no image supplied")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrInvalidBase64    = errors.New("image payload is not valid base64")
	ErrUndecodableImage = errors.New("image bytes cannot be decoded")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	ReadFormFile(file *multipart.FileHeader) ([]byte, error)
	DecodeImage(raw []byte, encoded string) (*DecodedImage, error)
}

// DecodedImage is an upload that decoded into a raster. Base64 keeps the original bytes for
// recognizers that want them as text.
type DecodedImage struct {
	Image  image.Image
	Format string
	Raw    []byte
	Base64 string
}

func (d *DecodedImage) MIMEType() string {
	switch d.Format {
	case "png", "gif", "bmp", "webp":
		return "image/" + d.Format
	default:
		return "image/jpeg"
	}
}

func (d *DecodedImage) Extension() string {
	if d.Format == "jpeg" || d.Format == "" {
		return "jpg"
	}
	return d.Format
}

const (
	DefaultMaxFileSize = 10 * 1024 * 1024
	DefaultMaxPixels   = 40_000_000
)

type utils struct {
	maxFileSize int64
	maxPixels   int64
}

func New() IUtils {
	return NewWithLimits(DefaultMaxFileSize, DefaultMaxPixels)
}

// NewWithLimits caps both the encoded upload size and the decoded raster (width x height).
func NewWithLimits(maxFileSize, maxPixels int64) IUtils {
	return &utils{
		maxFileSize: maxFileSize,
		maxPixels:   maxPixels,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil || file.Size == 0 {
		return ErrNoImage
	}

	if file.Size > u.maxFileSize {
		return ErrImageTooLarge
	}

	return nil
}

func (u *utils) ReadFormFile(file *multipart.FileHeader) ([]byte, error) {
	if err := u.ValidateImageFile(file); err != nil {
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return io.ReadAll(io.LimitReader(src, u.maxFileSize+1))
}

// DecodeImage accepts either raw upload bytes or a base64 string (a data URI prefix is
// allowed). Raw bytes win when both are present.
func (u *utils) DecodeImage(raw []byte, encoded string) (*DecodedImage, error) {
	if len(raw) == 0 {
		if strings.TrimSpace(encoded) == "" {
			return nil, ErrNoImage
		}

		decoded, err := decodeBase64Image(encoded)
		if err != nil {
			return nil, err
		}
		raw = decoded
	}

	if len(raw) == 0 {
		return nil, ErrNoImage
	}
	if int64(len(raw)) > u.maxFileSize {
		return nil, ErrImageTooLarge
	}

	// The header is read first so a small upload cannot claim a huge raster.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrUndecodableImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > u.maxPixels {
		return nil, ErrUndecodableImage
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrUndecodableImage
	}
	if img.Bounds().Empty() {
		return nil, ErrUndecodableImage
	}

	return &DecodedImage{
		Image:  img,
		Format: format,
		Raw:    raw,
		Base64: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func decodeBase64Image(encoded string) ([]byte, error) {
	payload := strings.TrimSpace(encoded)
	if strings.HasPrefix(payload, "data:") {
		_, after, found := strings.Cut(payload, ",")
		if !found {
			return nil, ErrInvalidBase64
		}
		payload = after
	}

	payload = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, payload)

	if payload == "" {
		return nil, ErrNoImage
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(payload); err == nil {
			return data, nil
		}
	}

	return nil, ErrInvalidBase64
}
