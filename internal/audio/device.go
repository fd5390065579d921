// Package audio holds the capture abstractions and the pure-Go codec helpers.
// Hardware-backed implementations live in audio/native.
package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var (
	ErrDeviceBusy       = errors.New("audio: capture device already in use")
	ErrPermissionDenied = errors.New("audio: capture permission denied")
	ErrUnsupported      = errors.New("audio: no capture device available")
)

// Device grants exclusive capture streams.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open capture. Chunks is closed once the stream has finalized,
// which happens after Stop (or on a device failure, delivered as a Chunk.Err).
type Stream interface {
	Chunks() <-chan Chunk
	MIMEType() string
	Stop() error
	Release() error
}

// Exclusive guards a device so only one stream holds it at a time.
type Exclusive struct {
	sem  *semaphore.Weighted
	held atomic.Bool
}

func NewExclusive() *Exclusive {
	return &Exclusive{sem: semaphore.NewWeighted(1)}
}

// Acquire fails fast with ErrDeviceBusy. The returned release func is idempotent.
func (e *Exclusive) Acquire() (func(), error) {
	if !e.sem.TryAcquire(1) {
		return nil, ErrDeviceBusy
	}
	e.held.Store(true)
	var once sync.Once
	return func() {
		once.Do(func() {
			e.held.Store(false)
			e.sem.Release(1)
		})
	}, nil
}

func (e *Exclusive) Held() bool { return e.held.Load() }
