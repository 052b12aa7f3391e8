// ABOUTME: Audio decode pipeline for soundboard clips
// ABOUTME: Decodes MP3/WAV/FLAC/OGG to normalized 16-bit stereo PCM
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// Output format shared by the whole playback path.
const (
	SampleRate    = 44100
	Channels      = 2
	BytesPerFrame = Channels * 2 // 16-bit samples

	// Resampling quality for beep.Resample. 4 is a good
	// speed/fidelity tradeoff for short clips.
	resampleQuality = 4

	// Loudness target for gain normalization, linear scale.
	// -20 dBFS RMS keeps uploads at a comparable volume without
	// pushing quiet clips into clipping.
	targetRMS = 0.1
	peakCeil  = 0.99
)

// ErrUnsupportedFormat indicates a file extension with no decoder.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeError wraps a failure to decode a specific file.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeFile decodes the audio file at path into interleaved 16-bit
// little-endian stereo PCM at SampleRate, with gain normalized toward
// targetRMS. The decoder is picked by file extension.
func DecodeFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		return nil, &DecodeError{Path: path, Err: ErrUnsupportedFormat}
	}
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if format.SampleRate != SampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, SampleRate, streamer)
	}

	samples, err := drain(src)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	gain := normalizeGain(samples)
	pcm := render(samples, gain)

	log.Printf("Decoded %s: %d Hz source, %s, gain %.2f",
		filepath.Base(path), format.SampleRate, Duration(pcm).Round(time.Millisecond), gain)
	return pcm, nil
}

// drain pulls the whole stream into memory as stereo float samples.
func drain(src beep.Streamer) ([][2]float64, error) {
	var samples [][2]float64
	buf := make([][2]float64, 512)
	for {
		n, ok := src.Stream(buf)
		samples = append(samples, buf[:n]...)
		if !ok {
			break
		}
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.New("stream contained no samples")
	}
	return samples, nil
}

// normalizeGain computes the linear gain that brings the clip's RMS to
// targetRMS, clamped so the peak never exceeds peakCeil.
func normalizeGain(samples [][2]float64) float64 {
	var sumSquares, peak float64
	for _, s := range samples {
		for _, v := range s {
			sumSquares += v * v
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}

	rms := math.Sqrt(sumSquares / float64(len(samples)*2))
	if rms == 0 || peak == 0 {
		return 1
	}

	gain := targetRMS / rms
	if peak*gain > peakCeil {
		gain = peakCeil / peak
	}
	return gain
}

// render converts float samples to interleaved s16le bytes with gain applied.
func render(samples [][2]float64, gain float64) []byte {
	pcm := make([]byte, len(samples)*BytesPerFrame)
	for i, s := range samples {
		left := clampInt16(s[0] * gain)
		right := clampInt16(s[1] * gain)
		binary.LittleEndian.PutUint16(pcm[i*BytesPerFrame:], uint16(left))
		binary.LittleEndian.PutUint16(pcm[i*BytesPerFrame+2:], uint16(right))
	}
	return pcm
}

func clampInt16(v float64) int16 {
	v *= 32767
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Duration reports the playback length of a PCM buffer.
func Duration(pcm []byte) time.Duration {
	frames := len(pcm) / BytesPerFrame
	return time.Duration(frames) * time.Second / SampleRate
}
