package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnavailable     = errors.New("service unavailable")
	ErrInvalidResponse = errors.New("invalid response")
	ErrInvalidFormat   = errors.New("invalid format")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification by the stage runner. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// MarkerForStatus maps an HTTP status code from an upstream API to the marker
// the stage runner understands. Unlisted codes map to ErrTransient.
func MarkerForStatus(code int) error {
	switch {
	case code == 429:
		return ErrRateLimited
	case code >= 500:
		return ErrUnavailable
	case code == 400, code == 415:
		return ErrInvalidFormat
	case code == 401, code == 403:
		return ErrConfiguration
	case code == 408:
		return ErrTimeout
	default:
		return ErrTransient
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
