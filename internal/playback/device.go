// ABOUTME: Audio output device abstraction and oto-backed implementation
// ABOUTME: Starts PCM playback and reports natural end-of-clip
package playback

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/pheineke/soundboard/internal/audio"
)

// Device starts audible playback of decoded PCM buffers. Start must begin
// output before returning; onDone is invoked from a device goroutine when
// the clip plays to its natural end, and never after Stop.
type Device interface {
	Start(pcm []byte, onDone func()) (Handle, error)
}

// Handle controls one running playback.
type Handle interface {
	// Stop halts output immediately. Idempotent.
	Stop()
}

// completionPollInterval is how often a playback is checked for natural
// end-of-clip. Clips are whole seconds long, so 50ms is plenty.
const completionPollInterval = 50 * time.Millisecond

// OtoDevice plays PCM buffers on the host audio output via oto.
type OtoDevice struct {
	ctx *oto.Context
}

// NewOtoDevice initializes the host audio output in the shared clip format.
func NewOtoDevice() (*OtoDevice, error) {
	op := &oto.NewContextOptions{
		SampleRate:   audio.SampleRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &OtoDevice{ctx: ctx}, nil
}

// Start begins playback of pcm and watches it for completion.
func (d *OtoDevice) Start(pcm []byte, onDone func()) (Handle, error) {
	player := d.ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()

	h := &otoHandle{player: player}
	go h.watch(onDone)
	return h, nil
}

type otoHandle struct {
	player  *oto.Player
	stopped atomic.Bool
}

func (h *otoHandle) Stop() {
	if h.stopped.Swap(true) {
		return
	}
	h.player.Close()
}

// watch polls the player until the buffer drains, then fires onDone.
// A Stop racing the final poll wins: onDone is only called if this
// goroutine is the one that transitions the handle to stopped.
func (h *otoHandle) watch(onDone func()) {
	ticker := time.NewTicker(completionPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if h.stopped.Load() {
			return
		}
		if h.player.IsPlaying() {
			continue
		}
		if h.stopped.Swap(true) {
			return
		}
		h.player.Close()
		onDone()
		return
	}
}
