package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// silenceFloorDB is reported for frames with no measurable energy.
const silenceFloorDB = -96.0

// Frame is one fixed-size chunk of mono PCM16 capture. Frames are handed to
// exactly one consumer and never mutated after creation.
type Frame struct {
	Samples    []int16
	CapturedAt time.Time
	Duration   time.Duration
}

// PCMBytes returns the frame samples as little-endian PCM16 bytes, the layout
// the realtime service expects inside audio.append payloads.
func (f Frame) PCMBytes() []byte {
	out := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// EnergyDB computes the frame RMS energy in decibels relative to full scale.
func (f Frame) EnergyDB() float64 {
	return RMSDecibels(f.Samples)
}

// RMSDecibels computes RMS energy in dBFS for PCM16 samples.
func RMSDecibels(samples []int16) float64 {
	if len(samples) == 0 {
		return silenceFloorDB
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms < 1 {
		return silenceFloorDB
	}
	db := 20 * math.Log10(rms/32768.0)
	if db < silenceFloorDB {
		return silenceFloorDB
	}
	return db
}

// SamplesFromPCM decodes little-endian PCM16 bytes. Odd trailing bytes are
// ignored.
func SamplesFromPCM(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
