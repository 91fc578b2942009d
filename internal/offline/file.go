package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const (
	fileSuffix = ".json"
	tempPrefix = ".backup-"
)

// FileStore keeps one file per key under a directory. Writes go through a
// temp file and a rename so a crash never leaves a half-written backup.
//
// The directory is watched, so writes by instances in other processes
// sharing it reach subscribers. The writer is unknown for those; Origin is
// the file that changed.
type FileStore struct {
	dir     string
	subs    *subscribers
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// mu orders this instance's writes against the watch loop's reads.
	mu sync.Mutex
	// known is the content last written or reported per key; a nil entry
	// means absent.
	known map[string][]byte

	closeOnce sync.Once
	stopped   chan struct{}
}

// NewFileStore creates dir if needed and starts watching it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("offline: empty directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create offline dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch offline dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch offline dir: %w", err)
	}
	s := &FileStore{
		dir:     dir,
		subs:    newSubscribers(),
		watcher: watcher,
		logger:  slog.Default(),
		known:   make(map[string][]byte),
		stopped: make(chan struct{}),
	}
	go s.watch()
	return s, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}

// keyOf maps a file name back to its key; temp files and strays are skipped.
func keyOf(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, fileSuffix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(base, fileSuffix))
	if err != nil {
		return "", false
	}
	return key, true
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read backup %s: %w", key, err)
	}
	return data, true, nil
}

func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp backup: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write backup %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync backup %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close backup %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return fmt.Errorf("commit backup %s: %w", key, err)
	}
	s.known[key] = nonNil(value)
	return nil
}

func (s *FileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup %s: %w", key, err)
	}
	s.known[key] = nil
	return nil
}

func (s *FileStore) Subscribe(key string, fn func(Change)) func() {
	return s.subs.add(key, fn)
}

// Close stops watching the directory. Stored files are kept.
func (s *FileStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.watcher.Close()
		<-s.stopped
	})
	return err
}

func (s *FileStore) watch() {
	defer close(s.stopped)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			key, ok := keyOf(event.Name)
			if !ok {
				continue
			}
			if change, changed := s.reload(key); changed {
				s.subs.notify(change)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("offline: watch failed", "dir", s.dir, "error", err)
		}
	}
}

// reload re-reads key and reports whether it differs from what this
// instance last wrote or reported. Events repeat and include our own writes;
// comparing content filters both.
func (s *FileStore) reload(key string) (Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		s.logger.Warn("offline: read changed backup", "key", key, "error", err)
		return Change{}, false
	default:
		data = nonNil(data)
	}

	prev, seen := s.known[key]
	if seen && (prev == nil) == (data == nil) && bytes.Equal(prev, data) {
		return Change{}, false
	}
	s.known[key] = data
	if data == nil {
		return Change{Key: key, Removed: true, Origin: s.path(key)}, true
	}
	return Change{Key: key, Value: cloneBytes(data), Origin: s.path(key)}, true
}

// nonNil keeps an empty value distinguishable from an absent one.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return cloneBytes(b)
}
