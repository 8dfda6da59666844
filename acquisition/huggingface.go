package acquisition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HuggingFaceSource implements Source against the Hugging Face Hub's
// public model-info API, the same host the teacher's ModelConfig entries
// hardcode direct "resolve/main" download URLs against.
type HuggingFaceSource struct {
	HTTPClient *http.Client

	// BaseURL defaults to https://huggingface.co; overridable for tests.
	BaseURL string

	// Token, when set, is sent as a Bearer token for private/gated repos.
	Token string
}

// NewHuggingFaceSource constructs a HuggingFaceSource with the public
// huggingface.co host and the given HTTP client (or http.DefaultClient
// if nil).
func NewHuggingFaceSource(client *http.Client, token string) *HuggingFaceSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HuggingFaceSource{HTTPClient: client, BaseURL: "https://huggingface.co", Token: token}
}

type hfModelInfo struct {
	Siblings []struct {
		RFilename string `json:"rfilename"`
	} `json:"siblings"`
}

// ListFiles queries the Hub's model-info endpoint and returns every
// sibling file's name. The API does not report file sizes in this
// response, so Size is left zero; acquisition's quantization matching
// and download-resume logic do not depend on it being populated ahead
// of the download itself.
func (s *HuggingFaceSource) ListFiles(ctx context.Context, repoID string) ([]RemoteFile, error) {
	url := fmt.Sprintf("%s/api/models/%s", s.BaseURL, repoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("acquisition: build model-info request: %w", err)
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("acquisition: fetch model info for %s: %w", repoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("acquisition: model info for %s returned status %d", repoID, resp.StatusCode)
	}

	var info hfModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("acquisition: decode model info for %s: %w", repoID, err)
	}

	files := make([]RemoteFile, 0, len(info.Siblings))
	for _, sib := range info.Siblings {
		if sib.RFilename != "" {
			files = append(files, RemoteFile{Name: sib.RFilename})
		}
	}
	return files, nil
}

// FileURL builds the direct download URL for filename within repoID,
// matching the "resolve/main" path the teacher's ModelConfig entries use.
func (s *HuggingFaceSource) FileURL(repoID, filename string) string {
	return fmt.Sprintf("%s/%s/resolve/main/%s", s.BaseURL, repoID, filename)
}
