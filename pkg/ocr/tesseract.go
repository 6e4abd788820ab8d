// Package ocr reads the numeric value shown in a cropped meter display region using Tesseract.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"
	"sync"

	"eldercare-vitals/pkg/digits"

	"github.com/otiai10/gosseract/v2"
)

const DigitChars = "0123456789"

var ErrPoolClosed = errors.New("ocr pool is closed")

// Engine wraps one Tesseract client. A client is not safe for concurrent use; share engines
// through a Pool.
type Engine struct {
	client       *gosseract.Client
	targetHeight int
}

func NewEngine(language string, targetHeight int) (*Engine, error) {
	client := gosseract.NewClient()

	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Readings are not dictionary words.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	if err := client.SetWhitelist(DigitChars); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}

	return &Engine{client: client, targetHeight: targetHeight}, nil
}

func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *Engine) ReadDigits(crop image.Image) (int, error) {
	prepared := digits.Prepare(crop, e.targetHeight)

	var buf bytes.Buffer
	if err := png.Encode(&buf, prepared); err != nil {
		return 0, fmt.Errorf("failed to encode region: %w", err)
	}

	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return 0, fmt.Errorf("OCR failed: %w", err)
	}

	return digits.Parse(text)
}

// Pool hands out engines to concurrent callers.
type Pool struct {
	engines   chan *Engine
	all       []*Engine
	closeOnce sync.Once
	closeErr  error
}

func NewPool(size int, language string, targetHeight int) (*Pool, error) {
	if size <= 0 {
		size = 1
	}

	p := &Pool{engines: make(chan *Engine, size)}
	for i := 0; i < size; i++ {
		engine, err := NewEngine(language, targetHeight)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.all = append(p.all, engine)
		p.engines <- engine
	}

	return p, nil
}

// NewPoolFromEnv reads OCR_POOL_SIZE, OCR_LANGUAGE and OCR_TARGET_HEIGHT.
func NewPoolFromEnv() (*Pool, error) {
	size, _ := strconv.Atoi(os.Getenv("OCR_POOL_SIZE"))
	if size <= 0 {
		size = 2
	}
	height, _ := strconv.Atoi(os.Getenv("OCR_TARGET_HEIGHT"))
	if height <= 0 {
		height = 64
	}
	return NewPool(size, os.Getenv("OCR_LANGUAGE"), height)
}

func (p *Pool) ReadDigits(ctx context.Context, crop image.Image) (int, error) {
	var engine *Engine
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case e, ok := <-p.engines:
		if !ok {
			return 0, ErrPoolClosed
		}
		engine = e
	}
	defer func() { p.engines <- engine }()

	return engine.ReadDigits(crop)
}

// Close waits for every engine to come back, releases them and closes the pool. Calls
// waiting for an engine then fail with ErrPoolClosed.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		var errs []error
		for range p.all {
			engine := <-p.engines
			if err := engine.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		close(p.engines)
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}
