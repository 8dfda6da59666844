package acquisition

import (
	"fmt"
	"strings"

	"go_backend/errkind"
)

// NotFoundError reports that no file in repoID matched the request at all
// (no preferred-file match, and the quantization filter matched nothing).
type NotFoundError struct {
	RepoID    string
	Requested string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("acquisition: no file matching %q found in %s (available: %s)",
		e.Requested, e.RepoID, strings.Join(e.Available, ", "))
}

func (e *NotFoundError) Kind() errkind.Kind { return errkind.AcquisitionNotFound }

// AmbiguousError reports that the quantization filter matched more than one
// file in repoID, with nothing to break the tie.
type AmbiguousError struct {
	RepoID       string
	Quantization string
	Matches      []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("acquisition: quantization %q matches %d files in %s (%s), specify preferred_file",
		e.Quantization, len(e.Matches), e.RepoID, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousError) Kind() errkind.Kind { return errkind.AcquisitionAmbiguous }

// ConversionRequiredError reports that repoID carries only safetensors
// weights, so acquisition fell through to the conversion pipeline but no
// Converter was configured to run it.
type ConversionRequiredError struct {
	RepoID string
}

func (e *ConversionRequiredError) Error() string {
	return fmt.Sprintf("acquisition: %s has no GGUF files; conversion from safetensors is required but no converter is configured", e.RepoID)
}

func (e *ConversionRequiredError) Kind() errkind.Kind { return errkind.AcquisitionConversionRequired }

// UnsupportedError reports that repoID's listing contains neither GGUF nor
// safetensors files, so no acquisition path applies.
type UnsupportedError struct {
	RepoID string
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("acquisition: %s is unsupported: %s", e.RepoID, e.Reason)
}

func (e *UnsupportedError) Kind() errkind.Kind { return errkind.AcquisitionUnsupported }
