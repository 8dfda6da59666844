package worker

import (
	"fmt"

	"go_backend/errkind"
)

// Error reports a failure at one of the distinct sites enumerated in
// §4.I: model-load-failed, lora-load-failed, context-create-failed,
// lora-apply-failed, tokenize-failed, decode-failed.
type Error struct {
	Site    string
	Kind    errkind.Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("worker: %s: %s: %v", e.Site, e.Message, e.Err)
	}
	return fmt.Sprintf("worker: %s: %s", e.Site, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	siteModelLoad     = "model-load-failed"
	siteLoRALoad      = "lora-load-failed"
	siteContextCreate = "context-create-failed"
	siteLoRAApply     = "lora-apply-failed"
	siteTokenize      = "tokenize-failed"
	siteDecode        = "decode-failed"
)
