// Package persister implements C1: the primitive durable file I/O used
// by every other component (append, overwrite, existence/removal
// checks, atomic rename) with a configurable fsync policy. Every error
// surfaces to the caller unchanged, as plain I/O errors — typed,
// triple-scoped errors are layered on above, in partition and segment.
package persister

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/flowlog/partitionstore/internal/config"
	"go.uber.org/zap"
)

const filePerm = 0o644

// Persister is safe for concurrent use; under FsyncPeriodic it tracks a
// set of paths written since the last flush and syncs them on a timer.
type Persister struct {
	policy   config.FsyncPolicy
	interval time.Duration
	log      *zap.SugaredLogger

	mu    sync.Mutex
	dirty map[string]struct{}
}

func New(policy config.FsyncPolicy, interval time.Duration, log *zap.SugaredLogger) *Persister {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Persister{
		policy:   policy,
		interval: interval,
		log:      log,
		dirty:    make(map[string]struct{}),
	}
}

// Append opens path in append mode (creating it if needed), writes
// data, and applies the fsync policy.
func (p *Persister) Append(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return p.afterWrite(f, path)
}

// Overwrite truncates path (creating it if needed) and writes data.
func (p *Persister) Overwrite(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return p.afterWrite(f, path)
}

func (p *Persister) afterWrite(f *os.File, path string) error {
	switch p.policy {
	case config.FsyncEveryWrite:
		return syncFile(f)
	case config.FsyncPeriodic:
		p.markDirty(path)
		return nil
	default:
		return nil
	}
}

func (p *Persister) markDirty(path string) {
	p.mu.Lock()
	p.dirty[path] = struct{}{}
	p.mu.Unlock()
}

// Run flushes dirty paths on p.interval until ctx is cancelled. It only
// does anything useful under FsyncPeriodic; callers under other
// policies may still call it harmlessly.
func (p *Persister) Run(ctx context.Context) {
	if p.policy != config.FsyncPeriodic || p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flushDirty()
		}
	}
}

func (p *Persister) flushDirty() {
	p.mu.Lock()
	paths := make([]string, 0, len(p.dirty))
	for path := range p.dirty {
		paths = append(paths, path)
	}
	p.dirty = make(map[string]struct{})
	p.mu.Unlock()

	for _, path := range paths {
		f, err := os.OpenFile(path, os.O_RDWR, filePerm)
		if err != nil {
			p.log.Warnw("periodic fsync: could not reopen dirty file", "path", path, "error", err)
			continue
		}
		if err := syncFile(f); err != nil {
			p.log.Warnw("periodic fsync failed", "path", path, "error", err)
		}
		f.Close()
	}
}

func (p *Persister) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (p *Persister) RemoveFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (p *Persister) RemoveDirAll(path string) error {
	return os.RemoveAll(path)
}

// CreateDir creates path non-recursively; parents must already exist.
func (p *Persister) CreateDir(path string) error {
	return os.Mkdir(path, 0o755)
}

func (p *Persister) Rename(src, dst string) error {
	return os.Rename(src, dst)
}

func (p *Persister) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}
