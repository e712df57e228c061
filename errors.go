package livetl

import "fmt"

// IndexBuildError indicates a malformed dictionary entry or a failed index build.
type IndexBuildError struct {
	Key     string
	Message string
	Cause   error
}

func (e *IndexBuildError) Error() string {
	msg := "index build error"
	if e.Key != "" {
		msg = fmt.Sprintf("index build error (%q)", e.Key)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", msg, e.Message)
}

func (e *IndexBuildError) Unwrap() error {
	return e.Cause
}

// UnsafeExpressionError reports a candidate pattern rejected by the
// backtracking safety filter. It is a skip signal, not a fault.
type UnsafeExpressionError struct {
	Pattern string
	Reason  string
}

func (e *UnsafeExpressionError) Error() string {
	return fmt.Sprintf("unsafe expression %q: %s", e.Pattern, e.Reason)
}

// MutationApplyError indicates a target node was detached or changed while
// an update was being applied.
type MutationApplyError struct {
	Message string
	Cause   error
}

func (e *MutationApplyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mutation apply error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("mutation apply error: %s", e.Message)
}

func (e *MutationApplyError) Unwrap() error {
	return e.Cause
}

// ObserverAttachError indicates change detection could not be attached to the
// chosen root.
type ObserverAttachError struct {
	Root    string
	Message string
	Cause   error
}

func (e *ObserverAttachError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("observer attach error (%s): %s: %v", e.Root, e.Message, e.Cause)
	}
	return fmt.Sprintf("observer attach error (%s): %s", e.Root, e.Message)
}

func (e *ObserverAttachError) Unwrap() error {
	return e.Cause
}

// SourceError indicates a dictionary source failure (unreachable store, bad file, etc.).
type SourceError struct {
	Source    string
	Message   string
	Cause     error
	Retryable bool // Whether the load can be retried
}

func (e *SourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source error (%s): %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("source error (%s): %s", e.Source, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a cache operation failure.
type CacheError struct {
	Message string
	Cause   error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("cache error: %s", e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}

// ConfigError indicates an invalid or unreadable configuration.
type ConfigError struct {
	Path    string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config error (%s): %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("config error (%s): %s", e.Path, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
