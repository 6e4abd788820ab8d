// Package digits prepares meter display crops for OCR and turns OCR text into readings.
package digits

import (
	"errors"
	"image"
	"image/color"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/image/draw"
)

var (
	ErrEmptyRegion = errors.New("region is empty")
	ErrNoDigits    = errors.New("no digits recognised")
)

// Crop cuts r out of img, clamped to the image bounds.
func Crop(img image.Image, r image.Rectangle) (image.Image, error) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil, ErrEmptyRegion
	}

	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r), nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst, nil
}

// Prepare converts a crop to grayscale and scales it to targetHeight, padding a white margin
// so digits do not touch the border.
func Prepare(crop image.Image, targetHeight int) *image.Gray {
	b := crop.Bounds()
	if targetHeight <= 0 {
		targetHeight = b.Dy()
	}

	width := b.Dx() * targetHeight / max(b.Dy(), 1)
	width = max(width, 1)
	margin := targetHeight / 8

	out := image.NewGray(image.Rect(0, 0, width+2*margin, targetHeight+2*margin))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	inner := image.Rect(margin, margin, margin+width, margin+targetHeight)
	draw.CatmullRom.Scale(out, inner, crop, b, draw.Over, nil)

	return out
}

// Parse keeps the digit characters of OCR output and returns them as an integer. Seven-segment
// displays often come back with spaces between digits, so those are joined.
func Parse(text string) (int, error) {
	var sb strings.Builder
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case unicode.IsSpace(r):
		default:
			if sb.Len() > 0 {
				return atoi(sb.String())
			}
		}
	}

	return atoi(sb.String())
}

func atoi(s string) (int, error) {
	if s == "" {
		return 0, ErrNoDigits
	}
	if len(s) > 3 {
		return 0, ErrNoDigits
	}
	return strconv.Atoi(s)
}
