package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrSynthesis     = errors.New("synthesis failure")
	ErrProtocol      = errors.New("protocol error")
	ErrTimeout       = errors.New("worker timeout")
	ErrCrash         = errors.New("worker crash")
	ErrSpawn         = errors.New("worker spawn failure")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrCancelled     = errors.New("run cancelled")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrCrash
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// WorkerFatal reports whether the error costs the worker its process.
// Validation, synthesis, and protocol errors stay local to one segment or one
// output line; timeouts, crashes, and spawn failures do not.
func WorkerFatal(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrCrash) || errors.Is(err, ErrSpawn)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
