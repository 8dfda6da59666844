package acquisition

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestDownloadResumableBasic(t *testing.T) {
	content := []byte("model weights go here, pretend this is a gguf file")
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "model.gguf")

	var progressCalls int
	err := downloadResumable(context.Background(), downloadOptions{
		URL:            server.URL,
		DestPath:       dest,
		ExpectedSHA256: hash,
		OnProgress:     func(int64, int64) { progressCalls++ },
	})
	if err != nil {
		t.Fatalf("downloadResumable: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("downloaded content mismatch")
	}
	if _, err := os.Stat(dest + ".download"); !os.IsNotExist(err) {
		t.Fatalf("staging file should have been renamed away, stat err = %v", err)
	}
}

func TestDownloadResumableResumesFromStagingFile(t *testing.T) {
	content := []byte("0123456789ABCDEFGHIJ")
	already := content[:10]

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			t.Fatalf("expected a Range header on resume")
		}
		var start int64
		if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-", &start); err != nil {
			t.Fatalf("parse range header %q: %v", rangeHeader, err)
		}
		remainder := content[start:]
		w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(start, 10)+"-"+strconv.Itoa(len(content)-1)+"/"+strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(remainder)
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "model.gguf")
	if err := os.WriteFile(dest+".download", already, 0o644); err != nil {
		t.Fatal(err)
	}

	err := downloadResumable(context.Background(), downloadOptions{URL: server.URL, DestPath: dest})
	if err != nil {
		t.Fatalf("downloadResumable: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("resumed content = %q, want %q", got, content)
	}
}
