// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package errors provides structured error handling for the context
// engine and its CLI.
//
// EngineError carries what went wrong, why it happened and how to fix
// it, tagged with one of the engine's error kinds. Each kind maps to a
// stable process exit code so CLI behavior is scriptable.
//
// Creating and displaying errors:
//
//	err := errors.NewConfigError(
//	    "Cannot load engine configuration",
//	    "The config file .contextengine/config.yaml is malformed",
//	    "Run 'cie init' to regenerate it",
//	    underlyingErr,
//	)
//	fmt.Fprint(os.Stderr, err.Format(false))
//
// Only configuration errors at initialization are fatal to a host; every
// other kind is reported through result values.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Kind is the engine's error taxonomy.
type Kind string

const (
	// KindConfig covers invalid globs, unknown provider types and
	// incompatible extractor combinations. Fatal at initialization.
	KindConfig Kind = "config"

	// KindIO covers reads/writes against project files or the state
	// directory.
	KindIO Kind = "io"

	// KindParse covers analyzer failure on one file.
	KindParse Kind = "parse"

	// KindBudget marks a retrieval layer that could not fit. Never
	// raised as an error; carried for JSON reporting symmetry.
	KindBudget Kind = "budget"

	// KindCancelled marks an observed external cancellation signal.
	KindCancelled Kind = "cancelled"

	// KindInternal marks invariant violations.
	KindInternal Kind = "internal"
)

// Exit codes per kind.
const (
	ExitSuccess   = 0
	ExitConfig    = 1
	ExitIO        = 2
	ExitParse     = 3
	ExitBudget    = 4
	ExitCancelled = 5
	ExitInternal  = 10
)

// exitCodes maps each kind to its process exit code.
var exitCodes = map[Kind]int{
	KindConfig:    ExitConfig,
	KindIO:        ExitIO,
	KindParse:     ExitParse,
	KindBudget:    ExitBudget,
	KindCancelled: ExitCancelled,
	KindInternal:  ExitInternal,
}

// EngineError is an error with structured context for end users.
type EngineError struct {
	// Kind tags the taxonomy bucket.
	Kind Kind

	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred.
	Cause string

	// Fix provides an actionable suggestion on how to resolve it.
	Fix string

	// Err is the wrapped underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap enables errors.Is / errors.As over the wrapped error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for the error's kind.
func (e *EngineError) ExitCode() int {
	if code, ok := exitCodes[e.Kind]; ok {
		return code
	}
	return ExitInternal
}

// NewConfigError creates a configuration error.
func NewConfigError(msg, cause, fix string, err error) *EngineError {
	return &EngineError{Kind: KindConfig, Message: msg, Cause: cause, Fix: fix, Err: err}
}

// NewIOError creates an I/O error.
func NewIOError(msg, cause, fix string, err error) *EngineError {
	return &EngineError{Kind: KindIO, Message: msg, Cause: cause, Fix: fix, Err: err}
}

// NewParseError creates a per-file analyzer error.
func NewParseError(msg, cause string, err error) *EngineError {
	return &EngineError{Kind: KindParse, Message: msg, Cause: cause, Err: err}
}

// NewCancelledError wraps an observed cancellation.
func NewCancelledError(msg string, err error) *EngineError {
	return &EngineError{Kind: KindCancelled, Message: msg, Err: err}
}

// NewInternalError creates an invariant-violation error.
func NewInternalError(msg, cause string, err error) *EngineError {
	return &EngineError{
		Kind:    KindInternal,
		Message: msg,
		Cause:   cause,
		Fix:     "This is a bug. Please report it at github.com/kraklabs/contextengine/issues",
		Err:     err,
	}
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a colored terminal rendering of the error. Color output
// respects NO_COLOR and the explicit noColor parameter. Empty Cause or
// Fix fields are omitted.
//
// Example output:
//
//	Error: Cannot load engine configuration
//	Cause: The config file is malformed
//	Fix:   Run 'cie init' to regenerate it
func (e *EngineError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// ErrorJSON is the machine-readable error form.
type ErrorJSON struct {
	Kind     string `json:"kind"`
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the error to its JSON-serializable structure.
func (e *EngineError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Kind:     string(e.Kind),
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode(),
	}
}

// FatalError prints the error and exits with the appropriate code. For
// non-EngineError values it prints a plain message and exits with
// ExitInternal. This function never returns.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ee, ok := err.(*EngineError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ee.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ee.Format(false))
		}
		os.Exit(ee.ExitCode())
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
