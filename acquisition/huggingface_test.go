package acquisition

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHuggingFaceSource_ListFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models/org/repo" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"siblings":[{"rfilename":"model-q4_k_m.gguf"},{"rfilename":"README.md"}]}`))
	}))
	defer srv.Close()

	src := &HuggingFaceSource{HTTPClient: srv.Client(), BaseURL: srv.URL}
	files, err := src.ListFiles(context.Background(), "org/repo")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Name != "model-q4_k_m.gguf" {
		t.Errorf("files[0].Name = %q", files[0].Name)
	}
}

func TestHuggingFaceSource_ListFilesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := &HuggingFaceSource{HTTPClient: srv.Client(), BaseURL: srv.URL}
	if _, err := src.ListFiles(context.Background(), "org/missing"); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

func TestHuggingFaceSource_FileURL(t *testing.T) {
	src := NewHuggingFaceSource(nil, "")
	got := src.FileURL("org/repo", "model-q4_k_m.gguf")
	want := "https://huggingface.co/org/repo/resolve/main/model-q4_k_m.gguf"
	if got != want {
		t.Errorf("FileURL = %q, want %q", got, want)
	}
}
