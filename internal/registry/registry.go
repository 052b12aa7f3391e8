// ABOUTME: Sound registry mapping stable ids to files and decoded buffers
// ABOUTME: Caches lazily decoded PCM with first-writer-wins population
package registry

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
)

var (
	// ErrNotFound indicates an unknown sound id.
	ErrNotFound = errors.New("sound not found")

	// ErrInvalidInput indicates a malformed registry entry.
	ErrInvalidInput = errors.New("invalid registry entry")
)

// Sound is one registered audio clip.
type Sound struct {
	ID   string
	Name string
	Path string
}

// DecodeFunc decodes the file at path into playable PCM.
type DecodeFunc func(path string) ([]byte, error)

// Registry maps sound ids to files and caches decoded buffers for its
// lifetime. All methods are safe for concurrent use; decoding happens
// outside the registry lock so slow I/O never blocks lookups.
type Registry struct {
	decode DecodeFunc

	mu      sync.RWMutex
	sounds  map[string]Sound
	order   []string
	buffers map[string][]byte
}

// New creates an empty registry using decode for lazy buffer loading.
func New(decode DecodeFunc) *Registry {
	return &Registry{
		decode:  decode,
		sounds:  make(map[string]Sound),
		buffers: make(map[string][]byte),
	}
}

// Register inserts or replaces an entry. The file at path must exist.
// Replacing an entry keeps its original position in List and drops any
// cached buffer for the id.
func (r *Registry) Register(id, path, name string) (Sound, error) {
	if id == "" {
		return Sound{}, fmt.Errorf("%w: empty sound id", ErrInvalidInput)
	}
	if _, err := os.Stat(path); err != nil {
		return Sound{}, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}

	s := Sound{ID: id, Name: name, Path: path}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sounds[id]; !exists {
		r.order = append(r.order, id)
	}
	r.sounds[id] = s
	delete(r.buffers, id)
	return s, nil
}

// Get returns the sound registered under id.
func (r *Registry) Get(id string) (Sound, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sounds[id]
	if !ok {
		return Sound{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s, nil
}

// List returns all sounds in insertion order.
func (r *Registry) List() []Sound {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Sound, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sounds[id])
	}
	return out
}

// Prime stores an already-decoded buffer for id, so a caller that had to
// decode the file anyway (upload validation) can warm the cache. Returns
// false if the id is unknown or a buffer is already cached.
func (r *Registry) Prime(id string, pcm []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sounds[id]; !ok {
		return false
	}
	if _, ok := r.buffers[id]; ok {
		return false
	}
	r.buffers[id] = pcm
	return true
}

// LoadBuffer returns the decoded PCM for id, decoding and caching it on
// first use. Concurrent first loads may decode the same file more than
// once; the first writer populates the cache and later results are
// discarded.
func (r *Registry) LoadBuffer(id string) ([]byte, error) {
	r.mu.RLock()
	buf, cached := r.buffers[id]
	s, known := r.sounds[id]
	r.mu.RUnlock()

	if !known {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if cached {
		return buf, nil
	}

	// Decode outside the lock; this is the slow path.
	decoded, err := r.decode(s.Path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if winner, ok := r.buffers[id]; ok {
		// Another caller got here first; our decode was wasted work.
		log.Printf("Discarding duplicate decode of %s", id)
		return winner, nil
	}
	r.buffers[id] = decoded
	return decoded, nil
}
