// ABOUTME: Upload ingest for new soundboard clips
// ABOUTME: Validates, stores, and registers files; scans the upload dir at startup
package ingest

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pheineke/soundboard/internal/registry"
)

// ErrDisallowedType indicates an upload with an unsupported extension.
var ErrDisallowedType = errors.New("file type not allowed")

var allowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".flac": true,
}

// Notifier is told about every successfully ingested sound.
type Notifier interface {
	SoundAdded(s registry.Sound)
}

// Ingest accepts new sound files into the upload directory and the
// registry. A file is only registered once it is fully written and has
// decoded successfully.
type Ingest struct {
	dir    string
	sounds *registry.Registry
	decode registry.DecodeFunc
	notify Notifier
}

// New creates an ingest writing into dir and registering with sounds.
// decode is used to validate uploads; notify may be nil.
func New(dir string, sounds *registry.Registry, decode registry.DecodeFunc, notify Notifier) *Ingest {
	return &Ingest{dir: dir, sounds: sounds, decode: decode, notify: notify}
}

// AllowedFile reports whether the filename has a supported extension.
func AllowedFile(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Store saves an uploaded file under a timestamped name, verifies it
// decodes, registers it, and notifies connected clients. The sound id is
// the stored filename.
func (in *Ingest) Store(filename string, r io.Reader) (registry.Sound, error) {
	name := sanitizeFilename(filepath.Base(filename))
	if name == "" || !AllowedFile(name) {
		return registry.Sound{}, fmt.Errorf("%w: %q", ErrDisallowedType, filename)
	}

	id := fmt.Sprintf("%d-%s", time.Now().Unix(), name)
	path := filepath.Join(in.dir, id)

	f, err := os.Create(path)
	if err != nil {
		return registry.Sound{}, fmt.Errorf("failed to create upload file: %w", err)
	}
	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return registry.Sound{}, fmt.Errorf("failed to save upload: %w", err)
	}

	// The file must decode before anyone can toggle it.
	pcm, err := in.decode(path)
	if err != nil {
		os.Remove(path)
		return registry.Sound{}, err
	}

	s, err := in.sounds.Register(id, path, DisplayName(id))
	if err != nil {
		os.Remove(path)
		return registry.Sound{}, err
	}
	in.sounds.Prime(id, pcm)

	log.Printf("Ingested %s (%d bytes)", id, written)
	if in.notify != nil {
		in.notify.SoundAdded(s)
	}
	return s, nil
}

// ScanDir registers every allowed file already present in the upload
// directory. Files that fail to register are logged and skipped; no
// notifications are sent for pre-existing sounds.
func (in *Ingest) ScanDir() (int, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read upload dir: %w", err)
	}

	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !AllowedFile(name) {
			continue
		}
		if _, err := in.sounds.Register(name, filepath.Join(in.dir, name), DisplayName(name)); err != nil {
			log.Printf("Skipping %s: %v", name, err)
			continue
		}
		count++
	}
	return count, nil
}

// DisplayName derives a human-readable name from a stored filename:
// the extension goes, and so does the upload timestamp prefix.
func DisplayName(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	if i := strings.Index(name, "-"); i > 0 {
		if _, err := strconv.ParseInt(name[:i], 10, 64); err == nil {
			name = name[i+1:]
		}
	}
	return name
}

// sanitizeFilename keeps a conservative character set so uploads cannot
// escape the upload directory or produce unservable names.
func sanitizeFilename(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return strings.TrimLeft(mapped, ".")
}
