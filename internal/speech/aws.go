package speech

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/eventstream"
	"github.com/snarg/stt-gateway/internal/sign"
)

const (
	// awsChunkBytes is 100ms of canonical PCM per AudioEvent.
	awsChunkBytes = 3200
)

// awsProvider streams PCM to Amazon Transcribe over a SigV4-presigned
// WebSocket. Both directions carry event-stream frames: outbound
// AudioEvents, inbound TranscriptEvents, with an empty AudioEvent as the
// end-of-stream marker. The server finishes by closing the socket.
type awsProvider struct {
	client
	endpoint string
	presign  *sign.V4Presigner
}

func newAWS(desc Descriptor, creds Credentials, opts Options) *awsProvider {
	return &awsProvider{
		client:   newClient(desc, creds, opts),
		endpoint: fmt.Sprintf("wss://transcribestreaming.%s.amazonaws.com:8443/stream-transcription-websocket", creds.Region),
		presign: &sign.V4Presigner{
			AccessKey: creds.AccessKey,
			SecretKey: creds.SecretKey,
			Region:    creds.Region,
			Service:   "transcribe",
		},
	}
}

// awsTranscriptEvent is the TranscriptEvent payload shape.
type awsTranscriptEvent struct {
	Transcript struct {
		Results []struct {
			IsPartial    bool `json:"IsPartial"`
			Alternatives []struct {
				Transcript string `json:"Transcript"`
			} `json:"Alternatives"`
		} `json:"Results"`
	} `json:"Transcript"`
}

var awsAudioEventHeaders = map[string]string{
	":message-type": "event",
	":event-type":   "AudioEvent",
	":content-type": "application/octet-stream",
}

func (p *awsProvider) presignedURL(language string) (string, error) {
	query := url.Values{}
	query.Set("language-code", bcp47(language, "en-US"))
	query.Set("media-encoding", "pcm")
	query.Set("sample-rate", strconv.Itoa(audio.SampleRate))
	return p.presign.PresignURL(p.endpoint, query)
}

func (p *awsProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}

	wsURL, err := p.presignedURL(language)
	if err != nil {
		return nil, wrapError(ErrRecognitionFailed, err, "presign url")
	}

	var finals []string
	send := func(ws *wsConn) error {
		err := pace(ctx, pcm, awsChunkBytes, 0, func(chunk []byte, first, last bool) error {
			return ws.binary(eventstream.Encode(awsAudioEventHeaders, chunk))
		})
		if err != nil {
			return err
		}
		// Empty AudioEvent tells the service the stream is complete.
		return ws.binary(eventstream.Encode(awsAudioEventHeaders, nil))
	}
	recv := func(msgType int, data []byte) (bool, error) {
		if msgType != websocket.BinaryMessage {
			return false, nil
		}
		msg, err := eventstream.Decode(data)
		if err != nil {
			return false, wrapError(ErrRecognitionFailed, err, "decode frame")
		}
		switch msg.Header(":message-type") {
		case "exception":
			e := newError(ErrRecognitionFailed, "service exception: %s", msg.Header(":exception-type"))
			e.Detail = snippet(msg.Payload)
			return false, e
		case "event":
			if msg.Header(":event-type") != "TranscriptEvent" {
				return false, nil
			}
			var ev awsTranscriptEvent
			if err := decodeJSON(msg.Payload, &ev); err != nil {
				return false, err
			}
			for _, r := range ev.Transcript.Results {
				if r.IsPartial || len(r.Alternatives) == 0 {
					continue
				}
				if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
					finals = append(finals, t)
				}
			}
			return false, nil
		default:
			return false, nil
		}
	}

	// The service has no terminal frame; it closes the socket once the
	// final transcript is out.
	if err := p.stream(ctx, wsURL, nil, send, recv); err != nil {
		return nil, err
	}
	text := strings.Join(finals, " ")
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "no final transcript")
	}
	return p.result(text, bcp47(language, "en-US"), ""), nil
}

func (p *awsProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	// The streaming service only accepts bare PCM; unwrap WAV containers
	// and refuse compressed formats.
	pcm, ok := trimToPCM(data, mimeType)
	if !ok {
		return nil, newError(ErrRecognitionFailed, "unsupported container %q for streaming input", mimeType)
	}
	return p.Transcribe(ctx, pcm, language)
}

func (p *awsProvider) ValidateCredentials(ctx context.Context) error {
	wsURL, err := p.presignedURL("")
	if err != nil {
		ve := newValidationError(ValidationUnknown, "presign url failed")
		ve.Err = err
		return ve
	}
	return p.validateStream(ctx, wsURL, nil)
}
