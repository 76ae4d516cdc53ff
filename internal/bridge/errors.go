package bridge

import "fmt"

// TransportError reports a failed dial, send or resource fetch. The UI keeps
// its current state; the next backend signal retries implicitly.
type TransportError struct {
	Op       string
	Resource string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	msg := "transport error: " + e.Op
	if e.Resource != "" {
		msg += " " + e.Resource
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// FormatError reports a payload that could not be understood. When Channel is
// set only that channel's render is skipped.
type FormatError struct {
	Resource string
	Channel  string
	Err      error
}

func (e *FormatError) Error() string {
	msg := "format error"
	if e.Resource != "" {
		msg += " in " + e.Resource
	}
	if e.Channel != "" {
		msg += " channel " + e.Channel
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }
