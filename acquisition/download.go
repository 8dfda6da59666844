package acquisition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// downloadOptions configures a resumable download.
type downloadOptions struct {
	URL            string
	DestPath       string
	ExpectedSHA256 string
	HTTPClient     *http.Client
	OnProgress     func(downloaded, total int64)
}

// downloadResumable fetches opts.URL into a "<DestPath>.download" staging
// file, resuming from that file's existing size on retry, and atomically
// renames it to DestPath once the transfer is complete and (if an expected
// hash was given) checksum-verified.
func downloadResumable(ctx context.Context, opts downloadOptions) error {
	if opts.URL == "" || opts.DestPath == "" {
		return fmt.Errorf("acquisition: download requires a URL and destination path")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if err := os.MkdirAll(filepath.Dir(opts.DestPath), 0o755); err != nil {
		return fmt.Errorf("acquisition: create destination directory: %w", err)
	}

	stagingPath := opts.DestPath + ".download"
	var resumeFrom int64
	if info, err := os.Stat(stagingPath); err == nil {
		resumeFrom = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("acquisition: build request: %w", err)
	}
	if resumeFrom > 0 {
		req.Header.Set("Range", buildRangeHeader(resumeFrom))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("acquisition: download request: %w", err)
	}
	defer resp.Body.Close()

	var openFlag int
	var total int64

	switch resp.StatusCode {
	case http.StatusOK:
		resumeFrom = 0
		openFlag = os.O_CREATE | os.O_TRUNC | os.O_WRONLY
		total = resp.ContentLength
	case http.StatusPartialContent:
		openFlag = os.O_CREATE | os.O_APPEND | os.O_WRONLY
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if _, _, t, err := parseContentRange(cr); err == nil && t > 0 {
				total = t
			}
		}
		if total == 0 && resp.ContentLength > 0 {
			total = resumeFrom + resp.ContentLength
		}
	case http.StatusRequestedRangeNotSatisfiable:
		// The staging file already holds everything the server has; treat
		// it as complete if it checksum-verifies, otherwise start fresh.
		if opts.ExpectedSHA256 != "" {
			if ok, _ := verifyChecksum(stagingPath, opts.ExpectedSHA256); ok {
				return finishDownload(stagingPath, opts.DestPath, opts.ExpectedSHA256)
			}
		}
		os.Remove(stagingPath)
		return downloadResumable(ctx, downloadOptions{
			URL: opts.URL, DestPath: opts.DestPath, ExpectedSHA256: opts.ExpectedSHA256,
			HTTPClient: opts.HTTPClient, OnProgress: opts.OnProgress,
		})
	default:
		return fmt.Errorf("acquisition: unexpected status code %d downloading %s", resp.StatusCode, opts.URL)
	}

	file, err := os.OpenFile(stagingPath, openFlag, 0o644)
	if err != nil {
		return fmt.Errorf("acquisition: open staging file: %w", err)
	}

	reader := &progressReader{
		reader:     resp.Body,
		downloaded: resumeFrom,
		total:      total,
		onProgress: opts.OnProgress,
	}
	_, copyErr := io.Copy(file, reader)
	syncErr := file.Sync()
	closeErr := file.Close()
	if copyErr != nil {
		return fmt.Errorf("acquisition: write staging file: %w", copyErr)
	}
	if syncErr != nil {
		return fmt.Errorf("acquisition: sync staging file: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("acquisition: close staging file: %w", closeErr)
	}

	return finishDownload(stagingPath, opts.DestPath, opts.ExpectedSHA256)
}

// finishDownload verifies the staging file (if a checksum was given) and
// atomically renames it to destPath.
func finishDownload(stagingPath, destPath, expectedSHA256 string) error {
	if expectedSHA256 != "" {
		ok, err := verifyChecksum(stagingPath, expectedSHA256)
		if err != nil {
			return fmt.Errorf("acquisition: verify checksum: %w", err)
		}
		if !ok {
			return fmt.Errorf("acquisition: checksum mismatch for %s", stagingPath)
		}
	}
	if err := os.Rename(stagingPath, destPath); err != nil {
		return fmt.Errorf("acquisition: finalize download: %w", err)
	}
	return nil
}

// progressReader wraps an HTTP response body, tracking bytes read and
// rate-limiting the onProgress callback to roughly every 256KB or on EOF.
type progressReader struct {
	reader       io.Reader
	downloaded   int64
	total        int64
	onProgress   func(downloaded, total int64)
	lastReported int64
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.downloaded += int64(n)
	}
	if r.onProgress != nil && (r.downloaded-r.lastReported >= 256*1024 || err == io.EOF) {
		r.onProgress(r.downloaded, r.total)
		r.lastReported = r.downloaded
	}
	return n, err
}
