package speech

// New builds the provider registered under id with the supplied
// credentials. It returns nil when the id is unknown or when the bundle
// lacks a field the provider's auth family requires. Both gates are pure
// checks; nothing touches the network until the first call on the
// returned provider.
func New(id string, creds Credentials, opts Options) Provider {
	desc, ok := Lookup(id)
	if !ok {
		return nil
	}
	if !HasRequired(desc.Auth, creds) {
		return nil
	}

	switch id {
	case ProviderWhisper:
		return newWhisper(desc, creds, opts)
	case ProviderElevenLabs:
		return newElevenLabs(desc, creds, opts)
	case ProviderDeepgram:
		return newDeepgram(desc, creds, opts)
	case ProviderAssemblyAI:
		return newAssemblyAI(desc, creds, opts)
	case ProviderBaidu:
		return newBaidu(desc, creds, opts)
	case ProviderGoogle:
		return newGoogle(desc, creds, opts)
	case ProviderAzure:
		return newAzure(desc, creds, opts)
	case ProviderAWS:
		return newAWS(desc, creds, opts)
	case ProviderIBM:
		return newIBM(desc, creds, opts)
	case ProviderIFlytek:
		return newIFlytek(desc, creds, opts)
	case ProviderTencent:
		return newTencent(desc, creds, opts)
	case ProviderUnisound:
		return newUnisound(desc, creds, opts)
	case ProviderAISpeech:
		return newAISpeech(desc, creds, opts)
	}
	return nil
}
