package narration

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// DecodeWAV parses a RIFF/WAVE file holding 16-bit PCM and downmixes it to
// mono.
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, errors.New("wav: missing RIFF/WAVE header")
	}
	var (
		haveFormat bool
		channels   int
		rate       int
		bits       int
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if id == "data" && end > len(data) {
			// Streamed WAVs sometimes carry a placeholder data size.
			end = len(data)
		}
		if end > len(data) {
			return PCM{}, fmt.Errorf("wav: chunk %q overruns file", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, errors.New("wav: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body:])
			if format != wavFormatPCM && format != wavFormatExtensible {
				return PCM{}, fmt.Errorf("wav: unsupported format tag %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			rate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFormat = true
		case "data":
			if !haveFormat {
				return PCM{}, errors.New("wav: data chunk before fmt chunk")
			}
			return decodeWAVSamples(data[body:end], channels, rate, bits)
		}
		offset = end + size%2
	}
	return PCM{}, errors.New("wav: no data chunk")
}

func decodeWAVSamples(payload []byte, channels, rate, bits int) (PCM, error) {
	if bits != 16 {
		return PCM{}, fmt.Errorf("wav: unsupported bit depth %d", bits)
	}
	if channels <= 0 || rate <= 0 {
		return PCM{}, fmt.Errorf("wav: invalid layout channels=%d rate=%d", channels, rate)
	}
	frameSize := 2 * channels
	frames := len(payload) / frameSize
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += int(int16(binary.LittleEndian.Uint16(payload[i*frameSize+ch*2:])))
		}
		out[i] = int16(sum / channels)
	}
	return PCM{SampleRate: rate, Samples: out}, nil
}

// EncodeWAV renders mono PCM as a 16-bit WAV file.
func EncodeWAV(p PCM) []byte {
	payload := EncodeS16LE(p.Samples)
	out := make([]byte, 44+len(payload))
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+len(payload)))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], wavFormatPCM)
	binary.LittleEndian.PutUint16(out[22:], 1)
	binary.LittleEndian.PutUint32(out[24:], uint32(p.SampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(p.SampleRate*2))
	binary.LittleEndian.PutUint16(out[32:], 2)
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(len(payload)))
	copy(out[44:], payload)
	return out
}
