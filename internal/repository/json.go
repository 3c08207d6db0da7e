package repository

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
)

// ErrCorruptRegistry is returned when the registry file exists but cannot be
// decoded. Callers must not treat it as an empty registry.
var ErrCorruptRegistry = errors.New("subscription registry is corrupt")

const reloadDebounce = 200 * time.Millisecond

// JSONStore keeps the registry in a single JSON file:
//
//	[{"token_address":"0x..","users":["123","456"]}]
//
// Every operation reloads the whole file and every mutation rewrites it.
// mu serializes operations inside the process.
type JSONStore struct {
	logger *logger.Logger
	path   string

	mu sync.Mutex
	// lastWritten is the digest of the bytes this store last wrote, used to
	// tell our own writes apart from external edits.
	lastWritten [sha256.Size]byte

	watcher    *fsnotify.Watcher
	debounce   *time.Timer
	debounceMu sync.Mutex
}

// NewJSONStore creates the store and its parent directory. The file itself is
// created on first save.
func NewJSONStore(path string, logger *logger.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	return &JSONStore{logger: logger, path: path}, nil
}

// Path returns the registry file location.
func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) Load() ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JSONStore) Save(subscriptions []models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(subscriptions)
}

func (s *JSONStore) Exists(token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return false, err
	}
	return find(subs, token) >= 0, nil
}

func (s *JSONStore) IsSubscribed(token, user string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.TokenAddress == token && sub.HasUser(user) {
			return true, nil
		}
	}
	return false, nil
}

func (s *JSONStore) SubscribersOf(token string) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return nil, false, err
	}
	idx := find(subs, token)
	if idx < 0 {
		return nil, false, nil
	}
	return subs[idx].Users, true, nil
}

func (s *JSONStore) AddSubscription(token, user string) error {
	return s.update(func(subs []models.Subscription) ([]models.Subscription, bool) {
		return append(subs, models.Subscription{TokenAddress: token, Users: []string{user}}), true
	})
}

func (s *JSONStore) AddUser(token, user string) error {
	return s.update(func(subs []models.Subscription) ([]models.Subscription, bool) {
		idx := find(subs, token)
		if idx < 0 {
			return subs, false
		}
		subs[idx].Users = append(subs[idx].Users, user)
		return subs, true
	})
}

func (s *JSONStore) Remove(token string) error {
	return s.update(func(subs []models.Subscription) ([]models.Subscription, bool) {
		idx := find(subs, token)
		if idx < 0 {
			return subs, false
		}
		return append(subs[:idx], subs[idx+1:]...), true
	})
}

func (s *JSONStore) Close() error {
	s.StopWatching()
	return nil
}

// update runs one load-mutate-save cycle under the store lock. fn reports
// whether it changed anything; unchanged registries are not rewritten.
func (s *JSONStore) update(fn func([]models.Subscription) ([]models.Subscription, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return err
	}
	subs, changed := fn(subs)
	if !changed {
		return nil
	}
	return s.save(subs)
}

// Caller must hold s.mu.
func (s *JSONStore) load() ([]models.Subscription, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []models.Subscription{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry %s: %w", s.path, err)
	}
	return decode(data, s.path)
}

// Caller must hold s.mu.
func (s *JSONStore) save(subscriptions []models.Subscription) error {
	data, err := encode(subscriptions)
	if err != nil {
		return err
	}

	tmpF, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpF.Name()

	if _, err := tmpF.Write(data); err != nil {
		tmpF.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpF.Sync(); err != nil {
		tmpF.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpF.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace registry %s: %w", s.path, err)
	}

	s.lastWritten = sha256.Sum256(data)
	return nil
}

func decode(data []byte, path string) ([]models.Subscription, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Subscription{}, nil
	}
	var subs []models.Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptRegistry, path, err)
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	for i := range subs {
		if subs[i].Users == nil {
			subs[i].Users = []string{}
		}
	}
	return subs, nil
}

func encode(subscriptions []models.Subscription) ([]byte, error) {
	out := make([]models.Subscription, len(subscriptions))
	for i, sub := range subscriptions {
		out[i] = sub
		if out[i].Users == nil {
			out[i].Users = []string{}
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registry: %w", err)
	}
	return data, nil
}

func find(subs []models.Subscription, token string) int {
	for i, sub := range subs {
		if sub.TokenAddress == token {
			return i
		}
	}
	return -1
}

// --- fsnotify: detect edits made outside the process ---

// StartWatching calls onChange (debounced) whenever the registry file is
// replaced or written by someone other than this store.
func (s *JSONStore) StartWatching(onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// the file is replaced through rename, so watch the directory
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	go s.watchLoop(watcher, onChange)
	s.logger.Info("Watching subscription registry for external changes", "path", s.path)
	return nil
}

func (s *JSONStore) StopWatching() {
	s.debounceMu.Lock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounceMu.Unlock()

	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}

func (s *JSONStore) watchLoop(watcher *fsnotify.Watcher, onChange func()) {
	target := filepath.Clean(s.path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.scheduleCheck(onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("Registry watcher error", "error", err)
		}
	}
}

func (s *JSONStore) scheduleCheck(onChange func()) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(reloadDebounce, func() {
		if s.changedExternally() {
			onChange()
		}
	})
}

func (s *JSONStore) changedExternally() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return !os.IsNotExist(err)
	}
	return sha256.Sum256(data) != s.lastWritten
}
