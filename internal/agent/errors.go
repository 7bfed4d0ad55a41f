package agent

import "errors"

// Sentinel errors for agent operations.
var (
	// ErrSessionBusy indicates another turn is already running for the
	// same session. Handlers map this to 409 Conflict.
	ErrSessionBusy = errors.New("session has a turn in progress")

	// ErrEmptyMessage indicates the turn carried no user text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrGenerationFailed indicates the model call failed after retries.
	ErrGenerationFailed = errors.New("response generation failed")
)
