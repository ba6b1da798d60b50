package dataset

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Store keeps parsed datasets per path and reloads a file when its size or
// modification time changes. Concurrent loads of one path share a single parse.
type Store struct {
	mu      sync.RWMutex
	entries map[string]storeEntry
	sf      singleflight.Group
}

type storeEntry struct {
	ds   *Dataset
	size int64
	mod  time.Time
}

func NewStore() *Store {
	return &Store{entries: make(map[string]storeEntry)}
}

func (s *Store) Get(path string) (*Dataset, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}

	s.mu.RLock()
	e, ok := s.entries[path]
	s.mu.RUnlock()
	if ok && e.size == st.Size() && e.mod.Equal(st.ModTime()) {
		return e.ds, nil
	}

	v, err, shared := s.sf.Do(path, func() (any, error) {
		start := time.Now()
		ds, err := Load(path)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.entries[path] = storeEntry{ds: ds, size: st.Size(), mod: st.ModTime()}
		s.mu.Unlock()
		log.Info().
			Str("path", path).
			Int("rows", ds.Len()).
			Int("hotels", len(ds.hotels)).
			Dur("took", time.Since(start)).
			Msg("dataset loaded")
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Str("path", path).Msg("dataset load shared")
	}
	return v.(*Dataset), nil
}
