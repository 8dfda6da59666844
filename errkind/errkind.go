// Package errkind defines the error taxonomy shared by every core package.
//
// Every structured error type in llamacore exposes a Kind() method so that
// callers can branch on a stable enum rather than string-matching messages
// or reaching for package-specific sentinel errors.
package errkind

// Kind classifies an error by origin and recommended handling policy.
type Kind int

const (
	Unknown Kind = iota
	Validation
	API
	ModelLoad
	Tokenization
	ContextCreate
	Inference
	LoRALoad
	LoRAApply
	ToolExec
	VisionUnsupported
	AcquisitionNotFound
	AcquisitionAmbiguous
	AcquisitionConversionRequired
	AcquisitionUnsupported
	NotGGUF
	UnsupportedVersion
	Malformed
)

var names = map[Kind]string{
	Unknown:                       "unknown",
	Validation:                    "validation",
	API:                           "api",
	ModelLoad:                     "model-load",
	Tokenization:                  "tokenization",
	ContextCreate:                 "context-create",
	Inference:                     "inference",
	LoRALoad:                      "lora-load",
	LoRAApply:                     "lora-apply",
	ToolExec:                      "tool-exec",
	VisionUnsupported:             "vision-unsupported",
	AcquisitionNotFound:           "acquisition-not-found",
	AcquisitionAmbiguous:          "acquisition-ambiguous",
	AcquisitionConversionRequired: "acquisition-conversion-required",
	AcquisitionUnsupported:        "acquisition-unsupported",
	NotGGUF:                       "not-gguf",
	UnsupportedVersion:            "unsupported-version",
	Malformed:                     "malformed",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown"
}

// Retryable reports whether the api kind's policy recommends a retry for
// the given HTTP status. Other kinds are never retryable by this helper;
// the core does not itself retry anything (retry scaffolding is an
// external collaborator per the scope of this module).
func Retryable(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
