package recording

import (
	"sync"
	"time"
)

// ticker is an owned periodic timer. Callbacks receive the ticker so the
// controller can drop ticks from an instance it already replaced.
type ticker struct {
	stop chan struct{}
	once sync.Once
}

func startTicker(interval time.Duration, fn func(*ticker)) *ticker {
	t := &ticker{stop: make(chan struct{})}
	go func() {
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				fn(t)
			}
		}
	}()
	return t
}

func (t *ticker) Stop() {
	t.once.Do(func() { close(t.stop) })
}
