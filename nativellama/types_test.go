package nativellama

import "testing"

func TestDefaultSamplingParams(t *testing.T) {
	p := DefaultSamplingParams()
	if p.Temperature != DefaultTemperature || p.TopK != DefaultTopK || p.TopP != DefaultTopP {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.Seed != nil {
		t.Fatalf("expected nil seed by default, got %v", *p.Seed)
	}
}

func TestResolveSeedPrefersExplicit(t *testing.T) {
	seed := uint32(42)
	p := SamplingParams{Seed: &seed}
	if got := p.resolveSeed(); got != 42 {
		t.Fatalf("resolveSeed() = %d, want 42", got)
	}
}

func TestInitBackendIdempotent(t *testing.T) {
	InitBackend()
	first := IsBackendInitialized()
	InitBackend()
	InitBackend()
	if !first || !IsBackendInitialized() {
		t.Fatal("InitBackend should leave the backend initialized after any number of calls")
	}
}
