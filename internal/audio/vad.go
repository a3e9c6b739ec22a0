package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// SilenceDetector classifies PCM frames as speech or silence by RMS energy
// and reports when a sustained silent run follows speech.
//
// The detector only observes; it never ends a segment itself. Ending is
// always the controller's decision.
type SilenceDetector struct {
	threshold     float64
	silenceFrames int
	graceFrames   int

	frames      int
	heardSpeech bool
	silentRun   int
	latched     bool
}

// NewSilenceDetector builds a detector for mono s16 frames of FrameDuration.
//
// threshold is an RMS energy level on the int16 sample scale; silence must
// persist for silenceDur before being reported, and frames inside the
// startDelay grace window are never classified so the stream's spin-up noise
// cannot trigger a premature boundary.
func NewSilenceDetector(threshold int, silenceDur, startDelay time.Duration) *SilenceDetector {
	silenceFrames := int(silenceDur / FrameDuration)
	if silenceFrames < 1 {
		silenceFrames = 1
	}
	return &SilenceDetector{
		threshold:     float64(threshold),
		silenceFrames: silenceFrames,
		graceFrames:   int(startDelay / FrameDuration),
	}
}

// Observe classifies one frame and reports true exactly once per segment,
// when the configured silent run completes after at least one speech frame.
func (d *SilenceDetector) Observe(frame []byte) bool {
	d.frames++
	if d.frames <= d.graceFrames {
		return false
	}

	if RMS(frame) >= d.threshold {
		d.heardSpeech = true
		d.silentRun = 0
		return false
	}

	if !d.heardSpeech || d.latched {
		return false
	}

	d.silentRun++
	if d.silentRun < d.silenceFrames {
		return false
	}
	d.latched = true
	return true
}

// HeardSpeech reports whether any frame so far crossed the speech threshold.
func (d *SilenceDetector) HeardSpeech() bool {
	return d.heardSpeech
}

// Reset clears all state for a fresh segment.
func (d *SilenceDetector) Reset() {
	d.frames = 0
	d.heardSpeech = false
	d.silentRun = 0
	d.latched = false
}

// RMS computes root-mean-square energy of little-endian s16 PCM bytes.
func RMS(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(samples))
}
