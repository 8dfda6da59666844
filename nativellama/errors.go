package nativellama

import (
	"fmt"

	"go_backend/errkind"
)

// Error is the structured error type returned by every native-bindings
// failure site named in §4.I: model-load, lora-load, context-create,
// lora-apply, tokenize, decode.
type Error struct {
	Op      string
	Kind    errkind.Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nativellama: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("nativellama: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrModelLoadFailed     = fmt.Errorf("model load failed")
	ErrContextCreateFailed = fmt.Errorf("context create failed")
	ErrTokenizeFailed      = fmt.Errorf("tokenize failed")
	ErrDecodeFailed        = fmt.Errorf("decode failed")
	ErrLoRALoadFailed      = fmt.Errorf("lora load failed")
	ErrLoRAApplyFailed     = fmt.Errorf("lora apply failed")
	ErrCGoUnavailable      = fmt.Errorf("native backend unavailable: built without cgo")
)

func newError(op string, kind errkind.Kind, message string, err error) *Error {
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}
