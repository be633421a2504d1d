// Package eventstream implements the binary framing used by Amazon Transcribe
// streaming over WebSocket. Each frame carries string headers and an opaque
// payload, both guarded by CRC32 checksums:
//
//	4B total length | 4B header length | 4B CRC32(prelude) |
//	headers (1B name len, name, 1B type tag, 2B value len, value)* |
//	payload | 4B CRC32(everything preceding)
//
// Only the string header value type (tag 7) is produced or consumed; that is
// the sole type the transcribe protocol uses.
package eventstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

const (
	preludeLen = 12
	// minFrameLen is an empty frame: prelude plus the trailing message CRC.
	minFrameLen = preludeLen + 4

	// headerTypeString is the wire tag for string-valued headers.
	headerTypeString = 7
)

var (
	// ErrFrameTooShort marks frames below the 16-byte structural minimum.
	// Stream consumers treat it as "no transcript in this frame" and keep
	// reading rather than failing the call.
	ErrFrameTooShort = errors.New("eventstream: frame under 16 bytes")

	// ErrChecksum marks a prelude or message CRC32 mismatch.
	ErrChecksum = errors.New("eventstream: crc32 mismatch")
)

// Message is one decoded event-stream frame.
type Message struct {
	Headers map[string]string
	Payload []byte
}

// Header returns the named string header, or "" when absent.
func (m Message) Header(name string) string {
	return m.Headers[name]
}

// Encode wraps payload and string headers into a single framed message.
func Encode(headers map[string]string, payload []byte) []byte {
	headerBlock := encodeHeaders(headers)

	total := preludeLen + len(headerBlock) + len(payload) + 4
	buf := make([]byte, 0, total)

	prelude := make([]byte, preludeLen)
	binary.BigEndian.PutUint32(prelude[0:4], uint32(total))
	binary.BigEndian.PutUint32(prelude[4:8], uint32(len(headerBlock)))
	binary.BigEndian.PutUint32(prelude[8:12], crc32.ChecksumIEEE(prelude[0:8]))

	buf = append(buf, prelude...)
	buf = append(buf, headerBlock...)
	buf = append(buf, payload...)

	msgCRC := make([]byte, 4)
	binary.BigEndian.PutUint32(msgCRC, crc32.ChecksumIEEE(buf))
	return append(buf, msgCRC...)
}

func encodeHeaders(headers map[string]string) []byte {
	// Deterministic order keeps encoded frames reproducible for signing and
	// tests. The header count is tiny, so a simple selection sort via sorted
	// key gathering is fine.
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}

	var block []byte
	for _, name := range keys {
		value := headers[name]
		block = append(block, byte(len(name)))
		block = append(block, name...)
		block = append(block, headerTypeString)

		vlen := make([]byte, 2)
		binary.BigEndian.PutUint16(vlen, uint16(len(value)))
		block = append(block, vlen...)
		block = append(block, value...)
	}
	return block
}

// Decode parses one framed message. Frames under 16 bytes return
// ErrFrameTooShort; structural or checksum violations return descriptive
// errors. Decode never panics on arbitrary input.
func Decode(frame []byte) (Message, error) {
	if len(frame) < minFrameLen {
		return Message{}, ErrFrameTooShort
	}

	totalLen := binary.BigEndian.Uint32(frame[0:4])
	headerLen := binary.BigEndian.Uint32(frame[4:8])
	preludeCRC := binary.BigEndian.Uint32(frame[8:12])

	if crc32.ChecksumIEEE(frame[0:8]) != preludeCRC {
		return Message{}, fmt.Errorf("%w: prelude", ErrChecksum)
	}
	if int(totalLen) != len(frame) {
		return Message{}, fmt.Errorf("eventstream: declared length %d, frame is %d bytes", totalLen, len(frame))
	}
	if preludeLen+int(headerLen)+4 > len(frame) {
		return Message{}, fmt.Errorf("eventstream: header block length %d exceeds frame", headerLen)
	}

	msgCRC := binary.BigEndian.Uint32(frame[len(frame)-4:])
	if crc32.ChecksumIEEE(frame[:len(frame)-4]) != msgCRC {
		return Message{}, fmt.Errorf("%w: message", ErrChecksum)
	}

	headers, err := decodeHeaders(frame[preludeLen : preludeLen+int(headerLen)])
	if err != nil {
		return Message{}, err
	}

	payload := frame[preludeLen+int(headerLen) : len(frame)-4]
	msg := Message{Headers: headers}
	if len(payload) > 0 {
		msg.Payload = make([]byte, len(payload))
		copy(msg.Payload, payload)
	}
	return msg, nil
}

func decodeHeaders(block []byte) (map[string]string, error) {
	headers := make(map[string]string)
	for len(block) > 0 {
		nameLen := int(block[0])
		if len(block) < 1+nameLen+1+2 {
			return nil, errors.New("eventstream: truncated header")
		}
		name := string(block[1 : 1+nameLen])
		typeTag := block[1+nameLen]
		if typeTag != headerTypeString {
			return nil, fmt.Errorf("eventstream: unsupported header type %d for %q", typeTag, name)
		}
		valueLen := int(binary.BigEndian.Uint16(block[1+nameLen+1 : 1+nameLen+3]))
		rest := block[1+nameLen+3:]
		if len(rest) < valueLen {
			return nil, errors.New("eventstream: truncated header value")
		}
		headers[name] = string(rest[:valueLen])
		block = rest[valueLen:]
	}
	return headers, nil
}
