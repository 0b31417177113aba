// Package audio provides WAV encoding, decoding, and the assembly stage
// that joins per-segment renders into one continuous artifact.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// WAV format constants for 16-bit PCM mono output.
const (
	wavHeaderSize    = 44
	pcmFormat        = 1
	monoChannels     = 1
	bitsPerSample    = 16
	bytesPerSample   = 2
	maxSampleValue   = 32767
	minChunkHeader   = 8
	fmtChunkMinSize  = 16
	riffSizeExcluded = 8
)

var (
	// ErrInvalidWAV indicates data that is not a parseable RIFF/WAVE file.
	ErrInvalidWAV = errors.New("invalid WAV data")

	// ErrUnsupportedFormat indicates a WAV encoding other than 16-bit PCM.
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// EncodeWAV serializes float32 samples as a 16-bit PCM mono WAV file.
// Samples outside [-1, 1] are clipped.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataSize := len(samples) * bytesPerSample
	out := make([]byte, 0, wavHeaderSize+dataSize)

	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(wavHeaderSize-riffSizeExcluded+dataSize))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, fmtChunkMinSize)
	out = binary.LittleEndian.AppendUint16(out, pcmFormat)
	out = binary.LittleEndian.AppendUint16(out, monoChannels)
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*bytesPerSample))
	out = binary.LittleEndian.AppendUint16(out, bytesPerSample)
	out = binary.LittleEndian.AppendUint16(out, bitsPerSample)

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))

	for _, sample := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(floatToPCM(sample)))
	}

	return out
}

func floatToPCM(sample float32) int16 {
	scaled := float64(sample) * maxSampleValue
	if scaled > maxSampleValue {
		scaled = maxSampleValue
	}

	if scaled < -maxSampleValue-1 {
		scaled = -maxSampleValue - 1
	}

	return int16(math.Round(scaled))
}

// DecodeWAV parses a 16-bit PCM WAV file into float32 samples and its
// sample rate. Multi-channel audio is downmixed to mono by averaging.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < wavHeaderSize ||
		string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		sampleRate int
		channels   int
		haveFormat bool
	)

	offset := 12

	for offset+minChunkHeader <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + minChunkHeader

		if body+chunkSize > len(data) {
			return nil, 0, fmt.Errorf("%w: truncated %q chunk", ErrInvalidWAV, chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < fmtChunkMinSize {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}

			format := int(binary.LittleEndian.Uint16(data[body : body+2]))
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := int(binary.LittleEndian.Uint16(data[body+14 : body+16]))

			if format != pcmFormat || bits != bitsPerSample {
				return nil, 0, fmt.Errorf(
					"%w: format %d, %d bits", ErrUnsupportedFormat, format, bits)
			}

			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, 0, fmt.Errorf("%w: data before fmt chunk", ErrInvalidWAV)
			}

			samples := decodePCM(data[body:body+chunkSize], channels)

			return samples, sampleRate, nil
		}

		// Chunks are word-aligned.
		offset = body + chunkSize + chunkSize%2
	}

	return nil, 0, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}

func decodePCM(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}

	frameSize := bytesPerSample * channels
	frames := len(pcm) / frameSize
	samples := make([]float32, frames)

	for frame := 0; frame < frames; frame++ {
		var sum float64

		for ch := 0; ch < channels; ch++ {
			start := frame*frameSize + ch*bytesPerSample
			value := int16(binary.LittleEndian.Uint16(pcm[start : start+2]))
			sum += float64(value) / maxSampleValue
		}

		samples[frame] = float32(sum / float64(channels))
	}

	return samples
}
