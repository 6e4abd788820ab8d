package ocr

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdlePool(size int) *Pool {
	p := &Pool{engines: make(chan *Engine, size)}
	for i := 0; i < size; i++ {
		e := &Engine{targetHeight: 64}
		p.all = append(p.all, e)
		p.engines <- e
	}
	return p
}

func TestPool_ReadAfterClose(t *testing.T) {
	p := newIdlePool(2)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.ReadDigits(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_CloseWaitsForBorrowedEngine(t *testing.T) {
	p := newIdlePool(1)
	borrowed := <-p.engines

	done := make(chan struct{})
	go func() {
		_ = p.Close()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Close returned while an engine was still in use")
	case <-time.After(50 * time.Millisecond):
	}

	p.engines <- borrowed
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not finish after the engine came back")
	}
}

func TestPool_WaitRespectsContext(t *testing.T) {
	p := newIdlePool(1)
	<-p.engines

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.ReadDigits(ctx, image.NewGray(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
