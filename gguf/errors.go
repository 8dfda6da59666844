package gguf

import (
	"fmt"

	"go_backend/errkind"
)

// ReadError reports a failure to read or parse a GGUF file, classified
// per §4.A: not-found, not-gguf, unsupported-version, or malformed.
type ReadError struct {
	Op      string
	Kind    errkind.Kind
	Message string
	Err     error
}

func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gguf: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("gguf: %s: %s", e.Op, e.Message)
}

func (e *ReadError) Unwrap() error { return e.Err }

func notFound(path string, err error) error {
	return &ReadError{Op: "open", Kind: errkind.ModelLoad, Message: "file not found: " + path, Err: err}
}

func notGGUF(got [4]byte) error {
	return &ReadError{Op: "magic", Kind: errkind.NotGGUF, Message: fmt.Sprintf("bad magic %q, want \"GGUF\"", got[:])}
}

func unsupportedVersion(v uint32) error {
	return &ReadError{Op: "version", Kind: errkind.UnsupportedVersion, Message: fmt.Sprintf("unsupported version %d, want 2 or 3", v)}
}

func malformed(op string, err error) error {
	return &ReadError{Op: op, Kind: errkind.Malformed, Message: "malformed gguf stream", Err: err}
}
