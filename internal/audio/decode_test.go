// ABOUTME: Tests for the audio decode pipeline
// ABOUTME: Exercises WAV decoding, gain normalization, and error classification
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeWAV writes a 16-bit stereo 44.1kHz WAV file with every sample set
// to the given amplitude (-1..1).
func writeWAV(t *testing.T, path string, frames int, amplitude float64) {
	t.Helper()

	dataLen := frames * BytesPerFrame
	buf := make([]byte, 44+dataLen)

	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:], Channels)
	binary.LittleEndian.PutUint32(buf[24:], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:], SampleRate*BytesPerFrame)
	binary.LittleEndian.PutUint16(buf[32:], BytesPerFrame)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))

	sample := uint16(int16(amplitude * 32767))
	for i := 0; i < frames*Channels; i++ {
		binary.LittleEndian.PutUint16(buf[44+i*2:], sample)
	}

	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
}

func TestDecodeFileWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 4410, 0.5) // 100ms

	pcm, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(pcm) == 0 || len(pcm)%BytesPerFrame != 0 {
		t.Fatalf("expected whole frames, got %d bytes", len(pcm))
	}

	d := Duration(pcm)
	if d < 90*time.Millisecond || d > 110*time.Millisecond {
		t.Errorf("expected ~100ms clip, got %s", d)
	}
}

func TestDecodeFileNormalizesLoudClip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	writeWAV(t, path, 2048, 0.5)

	pcm, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// Constant 0.5 amplitude has RMS 0.5; normalization should bring it
	// down near the -20 dBFS target (0.1 linear).
	sample := int16(binary.LittleEndian.Uint16(pcm[len(pcm)/2:]))
	got := math.Abs(float64(sample)) / 32767
	if got < 0.05 || got > 0.2 {
		t.Errorf("expected amplitude near 0.1 after normalization, got %.3f", got)
	}
}

func TestDecodeFileUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.txt")
	if err := os.WriteFile(path, []byte("not audio"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := DecodeFile(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Errorf("expected *DecodeError, got %T", err)
	}
}

func TestDecodeFileCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	if err := os.WriteFile(path, []byte("RIFFgarbage"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := DecodeFile(path)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if decErr.Path != path {
		t.Errorf("expected error path %s, got %s", path, decErr.Path)
	}
}

func TestDecodeFileMissing(t *testing.T) {
	_, err := DecodeFile(filepath.Join(t.TempDir(), "nope.mp3"))
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
}

func TestNormalizeGainSilence(t *testing.T) {
	samples := make([][2]float64, 128)
	if gain := normalizeGain(samples); gain != 1 {
		t.Errorf("expected unity gain for silence, got %.3f", gain)
	}
}

func TestNormalizeGainPeakClamp(t *testing.T) {
	// Very quiet clip with a single full-scale spike: RMS boost would
	// push the spike past full scale, so the peak clamp must win.
	samples := make([][2]float64, 1024)
	samples[0][0] = 0.9

	gain := normalizeGain(samples)
	if samples[0][0]*gain > peakCeil+1e-9 {
		t.Errorf("gain %.3f drives peak past ceiling", gain)
	}
}
