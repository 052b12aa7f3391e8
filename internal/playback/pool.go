// ABOUTME: Fixed-capacity pool of audio output channels
// ABOUTME: Binds sound ids to channels with deterministic first-free selection
package playback

import (
	"errors"
	"fmt"
)

// ErrNoFreeChannel indicates the pool is at capacity. A full pool is a
// reported condition; running playback is never evicted.
var ErrNoFreeChannel = errors.New("no free playback channel")

type slot struct {
	soundID string
	handle  Handle
}

// Pool is a fixed set of output channels binding sound ids to running
// playback. It is not internally synchronized: the Pool is owned by the
// Engine and only ever mutated under the engine's mutex.
type Pool struct {
	device Device
	slots  []slot
	index  map[string]int
}

// NewPool creates a pool with the given fixed capacity.
func NewPool(device Device, capacity int) *Pool {
	return &Pool{
		device: device,
		slots:  make([]slot, capacity),
		index:  make(map[string]int, capacity),
	}
}

// Capacity returns the fixed channel count.
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// Bound returns the number of occupied channels.
func (p *Pool) Bound() int {
	return len(p.index)
}

// IsBound reports whether soundID currently occupies a channel.
func (p *Pool) IsBound(soundID string) bool {
	_, ok := p.index[soundID]
	return ok
}

// BoundIDs returns the occupied sound ids in ascending channel order.
func (p *Pool) BoundIDs() []string {
	ids := make([]string, 0, len(p.index))
	for _, s := range p.slots {
		if s.handle != nil {
			ids = append(ids, s.soundID)
		}
	}
	return ids
}

// Acquire binds soundID to the lowest free channel and starts playback on
// it. Output is audible as soon as Acquire returns.
func (p *Pool) Acquire(soundID string, pcm []byte, onDone func()) (int, error) {
	if _, ok := p.index[soundID]; ok {
		return 0, fmt.Errorf("sound %q already bound to a channel", soundID)
	}

	for i := range p.slots {
		if p.slots[i].handle != nil {
			continue
		}
		h, err := p.device.Start(pcm, onDone)
		if err != nil {
			return 0, fmt.Errorf("failed to start playback of %q: %w", soundID, err)
		}
		p.slots[i] = slot{soundID: soundID, handle: h}
		p.index[soundID] = i
		return i, nil
	}

	return 0, ErrNoFreeChannel
}

// Release stops soundID's playback and frees its channel. Releasing an
// unbound id is a no-op.
func (p *Pool) Release(soundID string) {
	i, ok := p.index[soundID]
	if !ok {
		return
	}
	p.slots[i].handle.Stop()
	p.slots[i] = slot{}
	delete(p.index, soundID)
}

// ReleaseAll stops every bound channel.
func (p *Pool) ReleaseAll() {
	for id := range p.index {
		p.Release(id)
	}
}
