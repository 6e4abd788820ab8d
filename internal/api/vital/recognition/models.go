package vitalRecognition

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"eldercare-vitals/internal/entity"

	"github.com/sirupsen/logrus"
)

var ErrModelsClosed = errors.New("recognition models are closed")

type RegionDetector interface {
	DetectRegions(ctx context.Context, frame []byte) ([]entity.RegionBox, error)
}

type DigitReader interface {
	ReadDigits(ctx context.Context, crop image.Image) (int, error)
}

// ModelSet is the loaded pair of models shared by all requests.
type ModelSet struct {
	Detector RegionDetector
	Reader   DigitReader
	closeFn  func() error
}

func NewModelSet(detector RegionDetector, reader DigitReader, closeFn func() error) *ModelSet {
	return &ModelSet{Detector: detector, Reader: reader, closeFn: closeFn}
}

type Loader func() (*ModelSet, error)

// Models loads its ModelSet on first use. A failed load is retried on the next call.
type Models struct {
	mu     sync.Mutex
	loader Loader
	set    *ModelSet
	closed bool
	log    *logrus.Logger
}

func NewModels(loader Loader, log *logrus.Logger) *Models {
	return &Models{loader: loader, log: log}
}

func (m *Models) Get() (*ModelSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrModelsClosed
	}
	if m.set != nil {
		return m.set, nil
	}

	set, err := m.loader()
	if err != nil {
		m.log.WithField("error", err.Error()).Error("Failed to load recognition models")
		return nil, fmt.Errorf("load recognition models: %w", err)
	}

	m.log.Info("Recognition models loaded")
	m.set = set
	return set, nil
}

func (m *Models) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.set == nil || m.set.closeFn == nil {
		m.set = nil
		return nil
	}

	err := m.set.closeFn()
	m.set = nil
	return err
}
