package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/snarg/stt-gateway/internal/audio"
)

// wsConn wraps a WebSocket connection with serialized writes and
// idempotent close. Realtime endpoints drop the session on interleaved
// frames, so every write path goes through the mutex.
type wsConn struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
}

func (w *wsConn) text(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) binary(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.text(b)
}

func (w *wsConn) close() {
	w.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = w.conn.Close()
	})
}

// sendPaced writes pcm as fixed-size binary frames with a gap between
// sends, the cadence realtime endpoints expect from live microphones.
// gap 0 sends back to back.
func (w *wsConn) sendPaced(ctx context.Context, pcm []byte, chunkBytes int, gap time.Duration) error {
	return pace(ctx, pcm, chunkBytes, gap, func(chunk []byte, first, last bool) error {
		return w.binary(chunk)
	})
}

// pace slices pcm into chunkBytes frames and hands each to emit with
// first/last markers, sleeping gap between frames. Providers that wrap
// audio in JSON envelopes use it directly; binary providers go through
// sendPaced.
func pace(ctx context.Context, pcm []byte, chunkBytes int, gap time.Duration, emit func(chunk []byte, first, last bool) error) error {
	chunks := audio.Split(pcm, chunkBytes)
	if len(chunks) == 0 {
		chunks = [][]byte{nil}
	}
	for i, chunk := range chunks {
		if err := emit(chunk, i == 0, i == len(chunks)-1); err != nil {
			return err
		}
		if gap > 0 && i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gap):
			}
		}
	}
	return nil
}

// stream runs one bounded realtime exchange. send must write every
// outbound frame in order (session configuration, paced audio, the
// end-of-stream marker); recv is then invoked per inbound frame until it
// reports done or a terminal error. The whole exchange is bounded by the
// provider's stream deadline; cancellation force-closes the socket so
// blocked reads unwind.
func (c *client) stream(ctx context.Context, wsURL string, header http.Header, send func(*wsConn) error, recv func(msgType int, data []byte) (bool, error)) error {
	deadline := time.Now().Add(c.streamDeadline())
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HTTPTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			e := newError(ErrRecognitionFailed, "%s handshake rejected: status %d", c.desc.ID, resp.StatusCode)
			e.Err = err
			return e
		}
		return wrapError(ErrNetwork, err, "%s dial", c.desc.ID)
	}
	ws := &wsConn{conn: conn}
	defer ws.close()

	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ws.close()
		case <-stop:
		}
	}()

	if err := send(ws); err != nil {
		return c.streamFailure(ctx, err, "send")
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// Some backends end the session by closing instead of sending a
			// terminal frame; the provider decides whether what arrived
			// before the close is enough.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return c.streamFailure(ctx, err, "read")
		}
		done, err := recv(msgType, data)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// validateStream is the realtime credential probe: dial with the signed
// URL and close immediately. A rejected handshake carries the status that
// classifies the failure.
func (c *client) validateStream(ctx context.Context, wsURL string, header http.Header) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HTTPTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HTTPTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return newValidationError(MapStatus(resp.StatusCode), "%s handshake rejected: status %d", c.desc.ID, resp.StatusCode)
		}
		return c.validationFailure(err)
	}
	ws := &wsConn{conn: conn}
	ws.close()
	return nil
}

// trimToPCM unwraps containers a realtime provider can feed as bare
// samples: WAV payloads and raw PCM pass, compressed formats do not.
func trimToPCM(data []byte, mimeType string) ([]byte, bool) {
	switch strings.ToLower(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		pcm, ok := audio.TrimWAV(data)
		if !ok {
			return nil, false
		}
		return pcm, true
	case "audio/l16", "application/octet-stream", "":
		return data, true
	default:
		return nil, false
	}
}

// streamFailure classifies a transport error mid-exchange: the session
// deadline expiring without a final transcript is TRANSCRIPTION_TIMEOUT,
// caller cancellation propagates as-is, the rest is network failure.
func (c *client) streamFailure(ctx context.Context, err error, op string) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return wrapError(ErrTranscriptionTimeout, err, "%s stream deadline expired during %s", c.desc.ID, op)
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	default:
		return wrapError(ErrNetwork, err, "%s stream %s", c.desc.ID, op)
	}
}
