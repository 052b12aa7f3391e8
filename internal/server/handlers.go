// ABOUTME: HTTP handlers for sound listing, uploads, and static assets
// ABOUTME: The JSON surface used by the browser client
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/pheineke/soundboard/internal/audio"
	"github.com/pheineke/soundboard/internal/ingest"
	"github.com/pheineke/soundboard/internal/web"
)

// soundInfo is one entry of the /api/sounds listing.
type soundInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

func (s *Server) routes() {
	s.mux.Handle("/", web.Handler())
	s.mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.config.UploadDir))))
	s.mux.HandleFunc("/api/sounds", s.handleSounds)
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
}

// handleSounds lists all registered sounds for initial page population.
func (s *Server) handleSounds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sounds := s.sounds.List()
	infos := make([]soundInfo, 0, len(sounds))
	for _, snd := range sounds {
		infos = append(infos, soundInfo{
			ID:   snd.ID,
			Name: snd.Name,
			Path: "/uploads/" + snd.ID,
		})
	}

	writeJSON(w, http.StatusOK, infos)
}

// handleUpload accepts a multipart upload under the "sound" field and
// routes it through ingest. The new-sound broadcast is emitted by the
// ingest notifier on success.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	file, header, err := r.FormFile("sound")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing sound file"})
		return
	}
	defer file.Close()

	snd, err := s.ingest.Store(header.Filename, file)
	if err != nil {
		log.Printf("Upload of %s failed: %v", header.Filename, err)
		writeJSON(w, uploadErrorStatus(err), map[string]string{"error": uploadErrorMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, soundInfo{
		ID:   snd.ID,
		Name: snd.Name,
		Path: "/uploads/" + snd.ID,
	})
}

func uploadErrorStatus(err error) int {
	var decErr *audio.DecodeError
	if errors.Is(err, ingest.ErrDisallowedType) || errors.As(err, &decErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func uploadErrorMessage(err error) string {
	var decErr *audio.DecodeError
	switch {
	case errors.Is(err, ingest.ErrDisallowedType):
		return "only mp3, wav, ogg, and flac files are allowed"
	case errors.As(err, &decErr):
		return "file is not a decodable audio clip"
	default:
		return "failed to store upload"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
