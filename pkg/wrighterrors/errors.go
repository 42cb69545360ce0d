// Package wrighterrors defines the classified error type shared by every
// stage of the build orchestration engine and the transactional installer.
package wrighterrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the behavior it demands from callers, not by
// which package raised it.
type Kind string

const (
	KindValidation Kind = "validation"
	KindChecksum   Kind = "checksum"
	KindNetwork    Kind = "network"
	KindBuild      Kind = "build"
	KindResource   Kind = "resource"
	KindDependency Kind = "dependency"
	KindConflict   Kind = "conflict"
	KindCritical   Kind = "critical"
	KindCycle      Kind = "cycle"
	KindDatabase   Kind = "database"
	KindJournal    Kind = "journal"
)

// ExitCode reserves a distinct process exit code per kind (spec.md §9 open
// question, resolved in SPEC_FULL.md §7).
func (k Kind) ExitCode() int {
	switch k {
	case KindValidation:
		return 2
	case KindChecksum:
		return 3
	case KindNetwork:
		return 4
	case KindBuild:
		return 5
	case KindResource:
		return 6
	case KindDependency:
		return 7
	case KindConflict:
		return 8
	case KindCritical:
		return 9
	case KindCycle:
		return 10
	case KindDatabase:
		return 11
	case KindJournal:
		return 12
	default:
		return 1
	}
}

// Error is the classified error value threaded through the orchestrator,
// builder and installer. It is modeled on the teacher's EngineError: a
// single struct with fluent With* setters and Is/Unwrap support, generalized
// from a four-class retry taxonomy to Wright's eleven fatal-by-default
// kinds.
type Error struct {
	Kind    Kind
	Message string
	Package string
	Stage   string
	Hint    string
	LogPath string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Package != "" {
		msg += fmt.Sprintf(" (package=%s)", e.Package)
	}
	if e.Stage != "" {
		msg += fmt.Sprintf(" (stage=%s)", e.Stage)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += "\nhint: " + e.Hint
	}
	if e.LogPath != "" {
		msg += "\nlog: " + e.LogPath
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) WithPackage(name string) *Error { e.Package = name; return e }
func (e *Error) WithStage(stage string) *Error  { e.Stage = stage; return e }
func (e *Error) WithHint(hint string) *Error    { e.Hint = hint; return e }
func (e *Error) WithLogPath(path string) *Error { e.LogPath = path; return e }

// Is* predicates mirror the teacher's classification helpers.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsRetryable reports whether the error kind is automatically retried.
// Only Network errors retry (per retry_count); Checksum gets exactly one
// automatic re-fetch handled explicitly by the builder, not by a generic
// retry loop.
func IsRetryable(err error) bool {
	return Is(err, KindNetwork)
}

// ExitCode extracts the reserved exit code for an error, or 1 if err is not
// a *Error (or is nil, in which case 0 is returned by convention of callers
// checking err != nil first).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.ExitCode()
	}
	return 1
}
