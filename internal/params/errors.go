package params

import "fmt"

// ConfigError reports a configuration problem such as a missing element or
// a degenerate range. The affected binding or meter is skipped; the rest of
// the UI keeps initializing.
type ConfigError struct {
	What   string
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.What, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// MissingElement builds the error logged when a document element is absent.
func MissingElement(id string) *ConfigError {
	return &ConfigError{What: "element " + id, Detail: "not found"}
}
