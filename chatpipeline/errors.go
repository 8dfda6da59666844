package chatpipeline

import (
	"fmt"

	"go_backend/errkind"
)

// VisionUnsupportedError reports a chat request that attached one or
// more images; this runtime does not implement image intake (§4.J
// step 2, §8 Non-goals).
type VisionUnsupportedError struct {
	MessageIndex int
}

func (e *VisionUnsupportedError) Error() string {
	return fmt.Sprintf("chatpipeline: message %d attaches images, which this runtime cannot process", e.MessageIndex)
}

func (e *VisionUnsupportedError) Kind() errkind.Kind { return errkind.VisionUnsupported }

// Error reports a pipeline-level failure not already covered by a more
// specific structured error type (message.ValidationError, a worker
// error surfaced through a terminal chunk's implicit failure, etc).
type Error struct {
	Op      string
	Kind    errkind.Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chatpipeline: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("chatpipeline: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }
