package acquisition

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
)

// Request describes one model artifact to resolve.
type Request struct {
	RepoID         string
	OutputDir      string
	Quantization   string // defaults to DefaultQuantization
	PreferredFile  string // when set, must match a file name in the listing exactly
	ExpectedSHA256 string
}

// Planner implements the acquisition decision tree: preferred-file exact
// match, else quantization-filtered GGUF match (zero/one/many), else
// safetensors-to-GGUF conversion delegation, else unsupported.
type Planner struct {
	Source     Source
	Converter  Converter
	HTTPClient *http.Client
}

// New constructs a Planner over source, optionally wired to converter for
// repositories that carry only safetensors weights.
func New(source Source, converter Converter) *Planner {
	return &Planner{Source: source, Converter: converter}
}

// Resolve runs the decision tree synchronously: the listing and branch
// decision (including NotFoundError / AmbiguousError / UnsupportedError /
// ConversionRequiredError) complete, and an error is returned directly,
// before any download or conversion work starts. Only once a concrete
// target file (or a configured converter) is settled does Resolve return a
// status stream and begin asynchronous work.
func (p *Planner) Resolve(ctx context.Context, req Request) (<-chan Status, error) {
	quant := req.Quantization
	if quant == "" {
		quant = DefaultQuantization
	}

	files, err := p.Source.ListFiles(ctx, req.RepoID)
	if err != nil {
		return nil, fmt.Errorf("acquisition: list files for %s: %w", req.RepoID, err)
	}

	if req.PreferredFile != "" {
		for _, f := range files {
			if f.Name == req.PreferredFile {
				if isSafetensors(f.Name) {
					return p.delegateToConversion(ctx, req, quant)
				}
				return p.streamDownload(ctx, req, f), nil
			}
		}
		return nil, &NotFoundError{RepoID: req.RepoID, Requested: req.PreferredFile, Available: names(files)}
	}

	ggufFiles := filterNamed(files, isGGUF)
	matches, err := matchQuantization(ggufFiles, quant)
	if err != nil {
		return nil, fmt.Errorf("acquisition: compile quantization pattern for %q: %w", quant, err)
	}

	switch len(matches) {
	case 1:
		return p.streamDownload(ctx, req, matches[0]), nil
	case 0:
		safetensors := filterNamed(files, isSafetensors)
		if len(safetensors) > 0 {
			return p.delegateToConversion(ctx, req, quant)
		}
		if len(ggufFiles) == 0 {
			return nil, &UnsupportedError{RepoID: req.RepoID, Reason: "no GGUF or safetensors files found in repository"}
		}
		return nil, &NotFoundError{RepoID: req.RepoID, Requested: quant, Available: names(ggufFiles)}
	default:
		return nil, &AmbiguousError{RepoID: req.RepoID, Quantization: quant, Matches: names(matches)}
	}
}

func (p *Planner) delegateToConversion(ctx context.Context, req Request, quant string) (<-chan Status, error) {
	if p.Converter == nil {
		return nil, &ConversionRequiredError{RepoID: req.RepoID}
	}
	return p.streamConversion(ctx, req, quant), nil
}

func filterNamed(files []RemoteFile, pred func(string) bool) []RemoteFile {
	var out []RemoteFile
	for _, f := range files {
		if pred(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

func names(files []RemoteFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func progressPtr(v float64) *float64 { return &v }

// streamDownload resolves target's URL and downloads it into req.OutputDir,
// reporting checking/downloading/complete/failed stages.
func (p *Planner) streamDownload(ctx context.Context, req Request, target RemoteFile) <-chan Status {
	out := make(chan Status, 8)
	go func() {
		defer close(out)
		out <- Status{Stage: StageChecking, Message: fmt.Sprintf("resolving %s", target.Name)}

		url := p.Source.FileURL(req.RepoID, target.Name)
		destPath := filepath.Join(req.OutputDir, target.Name)

		err := downloadResumable(ctx, downloadOptions{
			URL:            url,
			DestPath:       destPath,
			ExpectedSHA256: req.ExpectedSHA256,
			HTTPClient:     p.HTTPClient,
			OnProgress: func(downloaded, total int64) {
				var progress *float64
				if total > 0 {
					progress = progressPtr(float64(downloaded) / float64(total))
				}
				out <- Status{Stage: StageDownloading, Progress: progress}
			},
		})
		if err != nil {
			out <- Status{Stage: StageFailed, Err: err, Message: err.Error()}
			return
		}
		out <- Status{Stage: StageComplete, Path: destPath}
	}()
	return out
}

// streamConversion runs the external conversion pipeline via p.Converter,
// forwarding its progress and terminating with complete/failed.
func (p *Planner) streamConversion(ctx context.Context, req Request, quant string) <-chan Status {
	out := make(chan Status, 8)
	go func() {
		defer close(out)
		out <- Status{Stage: StageChecking, Message: "no GGUF match, delegating to conversion"}

		path, err := p.Converter.Convert(ctx, req.RepoID, quant, req.OutputDir, func(s Status) {
			out <- s
		})
		if err != nil {
			out <- Status{Stage: StageFailed, Err: err, Message: err.Error()}
			return
		}
		out <- Status{Stage: StageComplete, Path: path}
	}()
	return out
}
