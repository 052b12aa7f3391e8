// ABOUTME: Playback toggle engine serializing all sound state mutations
// ABOUTME: Implements the start-or-stop state machine over the channel pool
package playback

import (
	"log"
	"sync"

	"github.com/pheineke/soundboard/internal/registry"
)

// State is the playback state of a single sound id.
type State int

const (
	StateStopped State = iota
	StatePlaying
)

func (s State) String() string {
	if s == StatePlaying {
		return "playing"
	}
	return "stopped"
}

// Event is one state transition of one sound.
type Event struct {
	SoundID string
	State   State
}

// Broadcaster fans a state-change event out to every connected session.
// Implementations must not block: the engine emits events while holding
// its mutex so that delivery order matches mutation order.
type Broadcaster interface {
	BroadcastState(Event)
}

// Engine owns the sound-id-to-channel mapping and is the only mutator of
// the pool. One mutex serializes every transition, explicit toggles and
// natural completions alike, because capacity is a cross-sound invariant.
type Engine struct {
	sounds *registry.Registry
	notify Broadcaster

	mu   sync.Mutex
	pool *Pool
	// gens invalidates in-flight completion callbacks: a callback from a
	// playback that has since been stopped (or stopped and restarted)
	// carries a stale generation and is ignored.
	gens map[string]uint64
}

// NewEngine creates an engine over the given registry and pool. The pool
// must not be touched by anyone else from this point on.
func NewEngine(sounds *registry.Registry, pool *Pool, notify Broadcaster) *Engine {
	return &Engine{
		sounds: sounds,
		notify: notify,
		pool:   pool,
		gens:   make(map[string]uint64),
	}
}

// Toggle starts soundID if it is stopped and stops it if it is playing,
// returning the resulting state. Exactly one event is broadcast per
// successful transition; failures are reported only to the caller.
func (e *Engine) Toggle(soundID string) (State, error) {
	if _, err := e.sounds.Get(soundID); err != nil {
		return StateStopped, err
	}

	// Decode outside the critical section. If the sound is already
	// playing the buffer is cached and this returns immediately; a
	// concurrent first decode is wasted work at worst.
	pcm, decodeErr := e.sounds.LoadBuffer(soundID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pool.IsBound(soundID) {
		e.pool.Release(soundID)
		e.gens[soundID]++
		log.Printf("Stopped %s (%d/%d channels bound)", soundID, e.pool.Bound(), e.pool.Capacity())
		e.notify.BroadcastState(Event{SoundID: soundID, State: StateStopped})
		return StateStopped, nil
	}

	if decodeErr != nil {
		return StateStopped, decodeErr
	}

	gen := e.gens[soundID] + 1
	e.gens[soundID] = gen
	onDone := func() { e.clipFinished(soundID, gen) }

	ch, err := e.pool.Acquire(soundID, pcm, onDone)
	if err != nil {
		return StateStopped, err
	}

	log.Printf("Playing %s on channel %d (%d/%d channels bound)", soundID, ch, e.pool.Bound(), e.pool.Capacity())
	e.notify.BroadcastState(Event{SoundID: soundID, State: StatePlaying})
	return StatePlaying, nil
}

// clipFinished handles natural end-of-clip from a device goroutine. It
// funnels through the same mutex as Toggle so clients never observe a
// completion out of order with explicit transitions.
func (e *Engine) clipFinished(soundID string, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gens[soundID] != gen || !e.pool.IsBound(soundID) {
		return
	}

	e.pool.Release(soundID)
	log.Printf("Finished %s (%d/%d channels bound)", soundID, e.pool.Bound(), e.pool.Capacity())
	e.notify.BroadcastState(Event{SoundID: soundID, State: StateStopped})
}

// Playing returns the currently playing sound ids in channel order.
func (e *Engine) Playing() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.BoundIDs()
}

// StopAll stops every playing sound without broadcasting, for shutdown.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range e.pool.BoundIDs() {
		e.gens[id]++
	}
	e.pool.ReleaseAll()
}
