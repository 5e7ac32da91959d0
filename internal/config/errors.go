package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid is wrapped by every validation failure.
	ErrInvalid = errors.New("invalid configuration")

	// ErrInvalidCrawler is returned when the crawler section fails validation.
	ErrInvalidCrawler = fmt.Errorf("%w: crawler", ErrInvalid)

	// ErrInvalidBrowser is returned when the browser section fails validation.
	ErrInvalidBrowser = fmt.Errorf("%w: browser", ErrInvalid)

	// ErrInvalidOutput is returned when the output section fails validation.
	ErrInvalidOutput = fmt.Errorf("%w: output", ErrInvalid)

	// ErrInvalidRedis is returned when the redis section is enabled but incomplete.
	ErrInvalidRedis = fmt.Errorf("%w: redis", ErrInvalid)

	// ErrInvalidElasticsearch is returned when the elasticsearch section is enabled but incomplete.
	ErrInvalidElasticsearch = fmt.Errorf("%w: elasticsearch", ErrInvalid)
)

// ValidationError names the offending field. It unwraps to the section sentinel.
type ValidationError struct {
	Section error
	Field   string
	Value   any
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: field %q with value %v: %s", e.Section, e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Section
}

func invalid(section error, field string, value any, reason string) error {
	return &ValidationError{Section: section, Field: field, Value: value, Reason: reason}
}
