// Package modelfetch resolves logical model names to local file paths,
// downloading missing models atomically.
package modelfetch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	getter "github.com/hashicorp/go-getter"

	"github.com/neutrinographics/faceguard/internal/observability"
)

// ProgressFunc receives download progress. total is -1 when unknown.
type ProgressFunc func(name string, done, total int64)

// slot is the wait-for-ready cell for one model. The first caller
// downloads; later callers block on the condition variable until the
// slot resolves.
type slot struct {
	done bool
	path string
	err  error
}

// Resolver maps logical model names to files under a cache directory.
// It is process-wide: create once at startup and share.
type Resolver struct {
	dir      string
	progress ProgressFunc

	mu    sync.Mutex
	cond  *sync.Cond
	slots map[string]*slot
}

func NewResolver(dir string, progress ProgressFunc) *Resolver {
	r := &Resolver{
		dir:      dir,
		progress: progress,
		slots:    make(map[string]*slot),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Resolve returns the local path for the named model, downloading from
// url when the file is absent. Concurrent callers for the same name
// share one download.
func (r *Resolver) Resolve(name, url string) (string, error) {
	r.mu.Lock()
	s, ok := r.slots[name]
	if ok {
		for !s.done {
			r.cond.Wait()
		}
		r.mu.Unlock()
		return s.path, s.err
	}
	s = &slot{}
	r.slots[name] = s
	r.mu.Unlock()

	path, err := r.fetch(name, url)

	r.mu.Lock()
	s.done = true
	s.path = path
	s.err = err
	r.cond.Broadcast()
	r.mu.Unlock()

	return path, err
}

func (r *Resolver) fetch(name, url string) (string, error) {
	dst := filepath.Join(r.dir, name)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	slog.Info("downloading model", "name", name, "url", url)
	tmp := dst + ".download"
	err := getter.GetFile(tmp, url, getter.WithProgress(&tracker{name: name, progress: r.progress}))
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("download model %s: %w", name, err)
	}

	// Atomic install: the final path only ever holds a complete file.
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("install model %s: %w", name, err)
	}
	slog.Info("model ready", "name", name, "path", dst)
	return dst, nil
}

// tracker adapts go-getter progress callbacks to ProgressFunc.
type tracker struct {
	name     string
	progress ProgressFunc
}

func (t *tracker) TrackProgress(src string, currentSize, totalSize int64, stream io.ReadCloser) io.ReadCloser {
	return &countingReader{
		inner:   stream,
		name:    t.name,
		done:    currentSize,
		total:   totalSize,
		publish: t.progress,
	}
}

type countingReader struct {
	inner   io.ReadCloser
	name    string
	done    int64
	total   int64
	publish ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.inner.Read(p)
	if n > 0 {
		c.done += int64(n)
		observability.ModelDownloadBytes.Add(float64(n))
		if c.publish != nil {
			c.publish(c.name, c.done, c.total)
		}
	}
	return n, err
}

func (c *countingReader) Close() error { return c.inner.Close() }
