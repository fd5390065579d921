package audio

import (
	"errors"
	"sync"
)

// ErrWriterClosed is returned by Write after Close.
var ErrWriterClosed = errors.New("audio: chunk writer closed")

// Chunk is one slice of encoded container data. A non-nil Err ends the stream.
type Chunk struct {
	Data []byte
	Err  error
}

// ChunkWriter turns container writes into an ordered stream of chunks.
// The channel returned by Chunks is closed by Close or Fail, after the last chunk.
type ChunkWriter struct {
	mu     sync.Mutex
	out    chan Chunk
	closed bool
}

func NewChunkWriter(buffer int) *ChunkWriter {
	if buffer < 1 {
		buffer = 1
	}
	return &ChunkWriter{out: make(chan Chunk, buffer)}
}

func (w *ChunkWriter) Chunks() <-chan Chunk { return w.out }

// Write copies p into a new chunk. It blocks while the consumer is behind.
func (w *ChunkWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrWriterClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	data := make([]byte, len(p))
	copy(data, p)
	w.out <- Chunk{Data: data}
	return len(p), nil
}

func (w *ChunkWriter) Close() error {
	return w.finish(nil)
}

// Fail delivers err as the final chunk and closes the stream.
func (w *ChunkWriter) Fail(err error) error {
	return w.finish(err)
}

func (w *ChunkWriter) finish(err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err != nil {
		w.out <- Chunk{Err: err}
	}
	close(w.out)
	return nil
}
