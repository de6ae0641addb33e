// ABOUTME: In-memory sample library
// ABOUTME: Stores converted samples keyed by ID and guards access with a mutex
package library

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sampledeck/sampledeck-go/pkg/audio"
	"github.com/sampledeck/sampledeck-go/pkg/audio/decode"
)

// ErrNotFound is returned when a sample ID is not in the library
var ErrNotFound = errors.New("sample not found")

// Sample is a converted sample held at audio.MasterSampleRate
type Sample struct {
	ID         string
	Name       string
	Kind       decode.Kind
	NativeRate int
	Buffer     *audio.Buffer
	Loop       *decode.Loop
	ImportedAt time.Time
}

// Frames returns the sample length in frames
func (s *Sample) Frames() int {
	return s.Buffer.Frames()
}

// Library is a concurrency-safe collection of samples
type Library struct {
	samples map[string]*Sample
	mu      sync.RWMutex
}

// New creates an empty library
func New() *Library {
	return &Library{
		samples: make(map[string]*Sample),
	}
}

// Add stores a sample, assigning an ID if it has none, and returns the ID
func (l *Library) Add(s *Sample) string {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.ImportedAt.IsZero() {
		s.ImportedAt = time.Now()
	}

	l.mu.Lock()
	l.samples[s.ID] = s
	l.mu.Unlock()

	return s.ID
}

// Get returns the sample with the given ID
func (l *Library) Get(id string) (*Sample, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.samples[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove deletes a sample
func (l *Library) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.samples[id]; !ok {
		return ErrNotFound
	}
	delete(l.samples, id)
	return nil
}

// Len returns the number of samples
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}

// List returns all samples ordered by import time, then name
func (l *Library) List() []*Sample {
	l.mu.RLock()
	list := make([]*Sample, 0, len(l.samples))
	for _, s := range l.samples {
		list = append(list, s)
	}
	l.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].ImportedAt.Equal(list[j].ImportedAt) {
			return list[i].ImportedAt.Before(list[j].ImportedAt)
		}
		return list[i].Name < list[j].Name
	})
	return list
}
