package speech

import (
	"time"

	"github.com/snarg/stt-gateway/internal/audio"
)

// Provider ids. The set is closed; Registry refuses anything else.
const (
	ProviderWhisper    = "whisper"
	ProviderElevenLabs = "elevenlabs"
	ProviderDeepgram   = "deepgram"
	ProviderAssemblyAI = "assemblyai"
	ProviderBaidu      = "baidu"
	ProviderGoogle     = "google"
	ProviderAzure      = "azure"
	ProviderAWS        = "aws"
	ProviderIBM        = "ibm"
	ProviderIFlytek    = "iflytek"
	ProviderTencent    = "tencent"
	ProviderUnisound   = "unisound"
	ProviderAISpeech   = "aispeech"
)

// DefaultMinAudioBytes is the shared minimum-duration floor: 100ms of
// canonical PCM. Transcribe fails fast below it without touching the network.
var DefaultMinAudioBytes = audio.BytesFor(100 * time.Millisecond)

// DefaultStreamTimeout bounds a realtime call from dial to final transcript.
const DefaultStreamTimeout = 30 * time.Second

// Descriptor is the immutable per-provider record: identity, auth family,
// capability flags, and the tunable floors the original deployments kept
// per-provider rather than global.
type Descriptor struct {
	ID   string
	Name string
	Auth AuthType
	// Streaming marks providers that deliver incremental results over a
	// connection.
	Streaming bool
	// Realtime marks providers usable for live bidirectional sessions.
	Realtime bool
	// MinAudioBytes is the fail-fast floor for Transcribe input.
	MinAudioBytes int
	// StreamTimeout bounds realtime calls; zero means DefaultStreamTimeout.
	StreamTimeout time.Duration
}

// SupportsStreaming reports the streaming capability flag.
func (d Descriptor) SupportsStreaming() bool { return d.Streaming }

// SupportsRealtime reports the realtime capability flag.
func (d Descriptor) SupportsRealtime() bool { return d.Realtime }

func (d Descriptor) minAudioBytes() int {
	if d.MinAudioBytes > 0 {
		return d.MinAudioBytes
	}
	return DefaultMinAudioBytes
}

func (d Descriptor) streamTimeout() time.Duration {
	if d.StreamTimeout > 0 {
		return d.StreamTimeout
	}
	return DefaultStreamTimeout
}

// descriptors is the closed provider table, one entry per backend.
var descriptors = []Descriptor{
	{ID: ProviderWhisper, Name: "OpenAI Whisper", Auth: AuthAPIKey},
	{ID: ProviderElevenLabs, Name: "ElevenLabs Scribe", Auth: AuthAPIKeyHeader},
	{ID: ProviderDeepgram, Name: "Deepgram", Auth: AuthAPIKeyHeader, Streaming: true, Realtime: true},
	{ID: ProviderAssemblyAI, Name: "AssemblyAI", Auth: AuthAPIKeyHeader},
	{ID: ProviderBaidu, Name: "Baidu Short Speech", Auth: AuthAPIKeySecret},
	{ID: ProviderGoogle, Name: "Google Cloud Speech", Auth: AuthServiceAccountOrAPIKey},
	{ID: ProviderAzure, Name: "Azure Speech", Auth: AuthSubscriptionKeyRegion},
	{ID: ProviderAWS, Name: "Amazon Transcribe Streaming", Auth: AuthAWSIAM, Streaming: true, Realtime: true, StreamTimeout: 60 * time.Second},
	{ID: ProviderIBM, Name: "IBM Watson STT", Auth: AuthIBMIAM},
	{ID: ProviderIFlytek, Name: "iFlytek IAT", Auth: AuthSignedRequest, Streaming: true, Realtime: true, StreamTimeout: 60 * time.Second},
	{ID: ProviderTencent, Name: "Tencent One-Sentence ASR", Auth: AuthSignedRequest},
	{ID: ProviderUnisound, Name: "Unisound ASR", Auth: AuthAKSK, Streaming: true, Realtime: true},
	{ID: ProviderAISpeech, Name: "AISpeech Short ASR", Auth: AuthAKSKSigned},
}

// Descriptors returns a copy of the provider table.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Lookup finds a descriptor by provider id.
func Lookup(id string) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}
