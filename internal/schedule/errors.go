package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks a template value that could not be read as a date,
	// weekday or time. Loading aborts and the previous schedule is kept.
	ErrParse = errors.New("schedule parse error")

	// ErrConfig marks a setting that was replaced by its default.
	ErrConfig = errors.New("schedule config error")

	ErrUnknownMode = errors.New("unknown schedule mode")
)

// ParseError reports the template value that failed to parse.
type ParseError struct {
	Field string // "date", "weekday" or "time"
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// ConfigError reports an invalid setting and the default used instead.
type ConfigError struct {
	Field    string
	Value    string
	Fallback string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q, using %q: %v", e.Field, e.Value, e.Fallback, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfig, e.Err}
}
