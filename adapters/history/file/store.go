// Package file persists the audit log as JSON lines
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"warpmine/domain/history"
	"warpmine/internal"
	"warpmine/ports"

	"go.uber.org/zap"
)

const maxLineBytes = 4 << 20

type writeReq struct {
	entry history.Entry
	errc  chan error
}

// view is what List reads. entries holds the newest lines of the file, all
// of them when complete is set. size is the file length the view covers.
type view struct {
	entries  []history.Entry
	complete bool
	size     int64
}

// Store appends one JSON object per line. A single goroutine owns the file
// and keeps up to tail recent entries in memory. List serves from them when
// it can and otherwise scans the file; it never waits for a write.
type Store struct {
	path   string
	tail   int
	f      *os.File
	reqs   chan writeReq
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
	view   atomic.Pointer[view]
	logger *zap.Logger
}

var _ ports.HistoryPort = (*Store)(nil)

// Open reads the recent entries of path and starts the writer. A tail of
// zero keeps every entry in memory. Lines that fail to decode are skipped
// with a warning.
func Open(path string, tail int, logger *zap.Logger) (*Store, error) {
	logger = internal.OrNop(logger).Named("history")
	if tail < 0 {
		return nil, fmt.Errorf("history tail must not be negative, got %d", tail)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat history file: %w", err)
	}

	s := &Store{
		path:   path,
		tail:   tail,
		f:      f,
		reqs:   make(chan writeReq),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	recent, total, err := s.scan(info.Size(), func(history.Entry) bool { return true }, tail, true)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.view.Store(&view{entries: recent, complete: len(recent) == total, size: info.Size()})
	go s.run()

	logger.Info("history file opened",
		zap.String("path", path), zap.Int("entries", total), zap.Int("in_memory", len(recent)))
	return s, nil
}

// scan reads the first size bytes of the file and returns the last keep
// entries accepted by match (all when keep is zero) and how many matched
func (s *Store) scan(size int64, match func(history.Entry) bool, keep int, warn bool) ([]history.Entry, int, error) {
	out := []history.Entry{}
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return out, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read history file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(io.LimitReader(f, size))
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	line, total := 0, 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e history.Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			if warn {
				s.logger.Warn("skipping unreadable history line", zap.Int("line", line), zap.Error(err))
			}
			continue
		}
		if !match(e) {
			continue
		}
		total++
		out = append(out, e)
		if keep > 0 && len(out) >= 2*keep {
			out = append(out[:0:0], out[len(out)-keep:]...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan history file: %w", err)
	}
	if keep > 0 && len(out) > keep {
		out = out[len(out)-keep:]
	}
	return out, total, nil
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case r := <-s.reqs:
			r.errc <- s.write(r.entry)
		case <-s.quit:
			return
		}
	}
}

func (s *Store) write(e history.Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	raw = append(raw, '\n')
	if _, err := s.f.Write(raw); err != nil {
		return fmt.Errorf("write history entry: %w", err)
	}

	cur := s.view.Load()
	next := &view{
		entries:  append(cur.entries, e),
		complete: cur.complete,
		size:     cur.size + int64(len(raw)),
	}
	if s.tail > 0 && len(next.entries) >= 2*s.tail {
		next.entries = append([]history.Entry(nil), next.entries[len(next.entries)-s.tail:]...)
		next.complete = false
	}
	s.view.Store(next)
	return nil
}

// Append hands entry to the writer and waits for the result. If ctx ends
// after the entry was handed over, the write still completes.
func (s *Store) Append(ctx context.Context, entry history.Entry) error {
	r := writeReq{entry: entry, errc: make(chan error, 1)}
	select {
	case s.reqs <- r:
	case <-s.quit:
		return ports.ErrHistoryClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-r.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns matching entries newest first. Listings that reach past the
// in-memory entries read the file up to the length written at call time.
func (s *Store) List(ctx context.Context, filter history.Filter) ([]history.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := s.view.Load()
	got := filter.Apply(v.entries)
	if v.complete || (filter.Limit > 0 && len(got) == filter.Limit) {
		return got, nil
	}
	matches, _, err := s.scan(v.size, filter.Matches, filter.Window(), false)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return filter.Apply(matches), nil
}

// Path of the backing file
func (s *Store) Path() string { return s.path }

// Close stops the writer and closes the file. It is safe to call twice.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.quit)
		<-s.done
		if serr := s.f.Sync(); serr != nil {
			err = serr
		}
		if cerr := s.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
