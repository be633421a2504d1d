// Package audio holds the canonical capture format shared by every provider:
// linear PCM, 16-bit signed little-endian samples, mono, 16 kHz. Buffers are
// never mutated; per-provider encodings (WAV container, base64, event-stream
// frames) are produced as copies at the transport boundary.
package audio

import (
	"encoding/binary"
	"time"
)

const (
	// SampleRate is the capture rate in Hz.
	SampleRate = 16000
	// Channels is mono capture.
	Channels = 1
	// BytesPerSample is 16-bit depth.
	BytesPerSample = 2
	// BytesPerSecond of canonical PCM.
	BytesPerSecond = SampleRate * Channels * BytesPerSample
)

// Duration reports the play time of a canonical PCM buffer.
func Duration(pcm []byte) time.Duration {
	return time.Duration(len(pcm)) * time.Second / BytesPerSecond
}

// BytesFor reports the canonical PCM size of d worth of audio.
func BytesFor(d time.Duration) int {
	return int(d * BytesPerSecond / time.Second)
}

// Silence returns d of zero-valued canonical PCM. Validation probes send it
// to exercise a provider's recognition path without speech content.
func Silence(d time.Duration) []byte {
	return make([]byte, BytesFor(d))
}

// WAV wraps canonical PCM in a RIFF/WAVE container (44-byte PCM header).
func WAV(pcm []byte) []byte {
	const headerLen = 44
	buf := make([]byte, headerLen+len(pcm))

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], BytesPerSecond)
	binary.LittleEndian.PutUint16(buf[32:34], Channels*BytesPerSample) // block align
	binary.LittleEndian.PutUint16(buf[34:36], BytesPerSample*8)        // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[headerLen:], pcm)

	return buf
}

// Split cuts pcm into frames of at most chunkBytes, preserving order. The
// final frame carries the remainder. Frames alias the input; callers that
// outlive the buffer must copy.
func Split(pcm []byte, chunkBytes int) [][]byte {
	if chunkBytes <= 0 || len(pcm) == 0 {
		if len(pcm) == 0 {
			return nil
		}
		return [][]byte{pcm}
	}
	frames := make([][]byte, 0, (len(pcm)+chunkBytes-1)/chunkBytes)
	for off := 0; off < len(pcm); off += chunkBytes {
		end := off + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		frames = append(frames, pcm[off:end])
	}
	return frames
}

// TrimWAV extracts the raw PCM payload from a RIFF/WAVE container, for
// backends that only accept bare samples. It returns data unchanged with
// ok=false when the bytes are not a WAV file or carry no data chunk.
func TrimWAV(data []byte) ([]byte, bool) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return data, false
	}
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if id == "data" {
			end := off + size
			if end > len(data) {
				end = len(data)
			}
			return data[off:end], true
		}
		// RIFF chunks are word-aligned.
		off += size + size%2
	}
	return data, false
}
