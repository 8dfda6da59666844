package acquisition

import "testing"

func TestMatchQuantizationToleratesSeparators(t *testing.T) {
	files := []RemoteFile{
		{Name: "model-Q4_K_M.gguf"},
		{Name: "model-Q8_0.gguf"},
		{Name: "model-q4-k-m.gguf"},
	}
	matches, err := matchQuantization(files, "q4_k_m")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2 (%+v)", len(matches), matches)
	}
}

func TestMatchQuantizationNoneMatch(t *testing.T) {
	files := []RemoteFile{{Name: "model-Q8_0.gguf"}}
	matches, err := matchQuantization(files, "q4_k_m")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %+v", matches)
	}
}

func TestIsGGUFAndIsSafetensors(t *testing.T) {
	if !isGGUF("model.GGUF") {
		t.Fatal("expected case-insensitive .gguf match")
	}
	if isGGUF("model.safetensors") {
		t.Fatal("unexpected .gguf match")
	}
	if !isSafetensors("model.safetensors") {
		t.Fatal("expected .safetensors match")
	}
}
