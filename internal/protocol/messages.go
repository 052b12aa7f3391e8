// ABOUTME: Soundboard wire message type definitions
// ABOUTME: Action-tagged JSON messages exchanged over the WebSocket
package protocol

// Actions sent by clients.
const (
	ActionToggleSound = "toggle-sound"
)

// Actions sent by the server.
const (
	ActionSoundPlayed  = "sound-played"
	ActionSoundStopped = "sound-stopped"
	ActionNewSound     = "new-sound"
	ActionError        = "error"
)

// Message is the single wire format for all soundboard messages.
// Which fields are set depends on Action.
type Message struct {
	Action  string `json:"action"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// SoundPlayed builds the broadcast for a sound entering the playing state.
func SoundPlayed(id string) Message {
	return Message{Action: ActionSoundPlayed, ID: id}
}

// SoundStopped builds the broadcast for a sound entering the stopped state.
func SoundStopped(id string) Message {
	return Message{Action: ActionSoundStopped, ID: id}
}

// NewSound builds the broadcast announcing a freshly ingested sound.
func NewSound(id, name string) Message {
	return Message{Action: ActionNewSound, ID: id, Name: name}
}

// Error builds an error reply for a single requester.
func Error(text string) Message {
	return Message{Action: ActionError, Message: text}
}
