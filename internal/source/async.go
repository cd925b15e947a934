package source

import (
	"context"
	"errors"
	"sync"
)

// FetchFunc produces the whole content of a package.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Async fetches content on a background goroutine. Precache reports false
// until the fetch finishes; Read and Seek wait for it.
type Async struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu   sync.Mutex
	mem  *Memory
	err  error
	once sync.Once
}

// NewAsync starts fetch in the background.
func NewAsync(ctx context.Context, fetch FetchFunc) *Async {
	ctx, cancel := context.WithCancel(ctx)
	a := &Async{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(a.done)
		data, err := fetch(ctx)
		a.mu.Lock()
		defer a.mu.Unlock()
		if err != nil {
			a.err = err
			return
		}
		a.mem = NewMemory(data)
	}()
	return a
}

// Ready reports whether the fetch has finished.
func (a *Async) Ready() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Done is closed when the fetch finishes.
func (a *Async) Done() <-chan struct{} { return a.done }

// Err returns the fetch error once finished.
func (a *Async) Err() error {
	if !a.Ready() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *Async) wait() (*Memory, error) {
	<-a.done
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	if a.mem == nil {
		return nil, errors.New("source closed")
	}
	return a.mem, nil
}

// Read waits for the content and reads from it.
func (a *Async) Read(p []byte) (int, error) {
	m, err := a.wait()
	if err != nil {
		return 0, err
	}
	return m.Read(p)
}

// Seek waits for the content and seeks in it.
func (a *Async) Seek(pos int64) error {
	m, err := a.wait()
	if err != nil {
		return err
	}
	return m.Seek(pos)
}

// Tell returns the position, zero before the content arrives.
func (a *Async) Tell() int64 {
	if !a.Ready() {
		return 0
	}
	m, err := a.wait()
	if err != nil {
		return 0
	}
	return m.Tell()
}

// TotalSize returns the content size, zero before it arrives.
func (a *Async) TotalSize() int64 {
	if !a.Ready() {
		return 0
	}
	m, err := a.wait()
	if err != nil {
		return 0
	}
	return m.TotalSize()
}

// Precache reports whether the content has arrived. A failed fetch
// reports true so the caller's next read surfaces the error.
func (a *Async) Precache(offset, size int64) bool {
	return a.Ready()
}

// Close cancels an outstanding fetch and drops the content.
func (a *Async) Close() error {
	a.once.Do(func() {
		a.cancel()
		<-a.done
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.mem != nil {
			a.mem.Close()
			a.mem = nil
		}
	})
	return nil
}
