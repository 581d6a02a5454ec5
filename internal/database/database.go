/*
Package database persists user profiles in a single JSON file.

Every read decodes the whole file and every write replaces it. Load, mutate
and save sequences run under one in-process mutex and a cross-process
advisory lock on a sibling ".lock" file, so concurrent requests cannot
silently drop each other's updates.
*/
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

var (
	// ErrProfileNotFound means no profile exists for the identity.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrStoreIO means the backing file could not be read, decoded or written.
	// A missing file is not an error; it is an empty store.
	ErrStoreIO = errors.New("profile store i/o failure")
)

const lockRetryDelay = 25 * time.Millisecond

// Service represents the profile store.
type Service interface {
	// Health returns a map of health status information.
	Health() map[string]string

	// Close releases the lock file handle.
	Close()

	// Load returns the whole collection.
	Load(ctx context.Context) (Profiles, error)

	// Save replaces the whole collection.
	Save(ctx context.Context, profiles Profiles) error

	// Get returns one profile or ErrProfileNotFound.
	Get(ctx context.Context, identity string) (Profile, error)

	// Put creates or replaces one profile.
	Put(ctx context.Context, identity string, profile Profile) error

	// Update applies fn to an existing profile and persists the result.
	// If fn returns an error nothing is written.
	Update(ctx context.Context, identity string, fn func(*Profile) error) (Profile, error)
}

type service struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewService opens the store at path. The file itself is created on first save.
func NewService(path string) (Service, error) {
	if path == "" {
		return nil, fmt.Errorf("profile store path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create profile store directory: %w", err)
		}
	}
	return &service{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *service) Load(ctx context.Context) (Profiles, error) {
	var out Profiles
	err := s.withLock(ctx, func() error {
		var err error
		out, err = s.read()
		return err
	})
	return out, err
}

func (s *service) Save(ctx context.Context, profiles Profiles) error {
	return s.withLock(ctx, func() error {
		return s.write(profiles)
	})
}

func (s *service) Get(ctx context.Context, identity string) (Profile, error) {
	profiles, err := s.Load(ctx)
	if err != nil {
		return Profile{}, err
	}
	profile, ok := profiles[identity]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return profile, nil
}

func (s *service) Put(ctx context.Context, identity string, profile Profile) error {
	return s.withLock(ctx, func() error {
		profiles, err := s.read()
		if err != nil {
			return err
		}
		profiles[identity] = profile
		return s.write(profiles)
	})
}

func (s *service) Update(ctx context.Context, identity string, fn func(*Profile) error) (Profile, error) {
	var updated Profile
	err := s.withLock(ctx, func() error {
		profiles, err := s.read()
		if err != nil {
			return err
		}
		profile, ok := profiles[identity]
		if !ok {
			return ErrProfileNotFound
		}
		if err := fn(&profile); err != nil {
			return err
		}
		profiles[identity] = profile
		if err := s.write(profiles); err != nil {
			return err
		}
		updated = profile
		return nil
	})
	return updated, err
}

// Health reports whether the backing file is readable.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := map[string]string{"path": s.path}

	profiles, err := s.Load(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		log.Error().Err(err).Str("path", s.path).Msg("profile store down")
		return stats
	}

	stats["status"] = "up"
	stats["profiles"] = strconv.Itoa(len(profiles))
	if info, err := os.Stat(s.path); err == nil {
		stats["size_bytes"] = strconv.FormatInt(info.Size(), 10)
		stats["modified_at"] = info.ModTime().UTC().Format(time.RFC3339)
	}
	return stats
}

func (s *service) Close() {
	if err := s.lock.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to release profile store lock")
	}
}

func (s *service) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("%w: acquire lock: %v", ErrStoreIO, err)
	}
	if !locked {
		return fmt.Errorf("%w: lock not acquired", ErrStoreIO)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			log.Warn().Err(err).Msg("failed to unlock profile store")
		}
	}()

	return fn()
}

// read must be called with the lock held.
func (s *service) read() (Profiles, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Profiles{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStoreIO, s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Profiles{}, nil
	}

	var profiles Profiles
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStoreIO, s.path, err)
	}
	if profiles == nil {
		profiles = Profiles{}
	}
	return profiles, nil
}

// write must be called with the lock held. The file is replaced atomically.
func (s *service) write(profiles Profiles) error {
	if profiles == nil {
		profiles = Profiles{}
	}
	data, err := json.MarshalIndent(profiles, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStoreIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStoreIO, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write temp file: %v", ErrStoreIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync temp file: %v", ErrStoreIO, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close temp file: %v", ErrStoreIO, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace %s: %v", ErrStoreIO, s.path, err)
	}
	return nil
}
