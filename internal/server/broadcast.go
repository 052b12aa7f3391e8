// ABOUTME: Adapters from engine and ingest callbacks to hub broadcasts
// ABOUTME: Translates internal events into wire protocol messages
package server

import (
	"github.com/pheineke/soundboard/internal/hub"
	"github.com/pheineke/soundboard/internal/playback"
	"github.com/pheineke/soundboard/internal/protocol"
	"github.com/pheineke/soundboard/internal/registry"
)

// stateBroadcaster forwards playback transitions to every session. The
// engine calls this with its mutex held, so delivery order matches the
// transition order; the hub never blocks, making that safe.
type stateBroadcaster struct {
	hub *hub.Hub
}

func (b stateBroadcaster) BroadcastState(ev playback.Event) {
	if ev.State == playback.StatePlaying {
		b.hub.Broadcast(protocol.SoundPlayed(ev.SoundID))
		return
	}
	b.hub.Broadcast(protocol.SoundStopped(ev.SoundID))
}

// soundNotifier announces freshly ingested sounds.
type soundNotifier struct {
	hub *hub.Hub
}

func (n soundNotifier) SoundAdded(s registry.Sound) {
	n.hub.Broadcast(protocol.NewSound(s.ID, s.Name))
}
