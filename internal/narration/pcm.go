package narration

import (
	"encoding/binary"
	"errors"
	"time"
)

// PCM is mono signed 16-bit audio.
type PCM struct {
	SampleRate int
	Samples    []int16
}

// Duration returns the clip length.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// Empty reports whether the clip holds no samples.
func (p PCM) Empty() bool {
	return len(p.Samples) == 0
}

// Resample converts p to rate with linear interpolation.
func (p PCM) Resample(rate int) PCM {
	if rate <= 0 || p.SampleRate <= 0 || p.SampleRate == rate {
		return p
	}
	if len(p.Samples) == 0 {
		return PCM{SampleRate: rate}
	}
	outLen := int(int64(len(p.Samples)) * int64(rate) / int64(p.SampleRate))
	out := make([]int16, outLen)
	step := float64(p.SampleRate) / float64(rate)
	last := len(p.Samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = p.Samples[last]
			continue
		}
		frac := pos - float64(idx)
		a := float64(p.Samples[idx])
		b := float64(p.Samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return PCM{SampleRate: rate, Samples: out}
}

// Silence returns d of silence at rate.
func Silence(rate int, d time.Duration) PCM {
	if rate <= 0 || d <= 0 {
		return PCM{SampleRate: rate}
	}
	n := int(int64(d) * int64(rate) / int64(time.Second))
	return PCM{SampleRate: rate, Samples: make([]int16, n)}
}

// DecodeS16LE parses raw little-endian mono samples.
func DecodeS16LE(data []byte, rate int) (PCM, error) {
	if len(data)%2 != 0 {
		return PCM{}, errors.New("s16le payload has odd length")
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return PCM{SampleRate: rate, Samples: samples}, nil
}

// EncodeS16LE renders samples as raw little-endian bytes.
func EncodeS16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
