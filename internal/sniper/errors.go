package sniper

import "fmt"

// EntryErrorKind classifies why an entry attempt failed.
type EntryErrorKind string

const (
	EntryNoRoute          EntryErrorKind = "no_route"
	EntryBuildFailed      EntryErrorKind = "build_failed"
	EntrySimulationFailed EntryErrorKind = "simulation_failed"
	EntrySubmitFailed     EntryErrorKind = "submit_failed"
	EntryConfirmFailed    EntryErrorKind = "confirm_failed"
	EntryNoTokensReceived EntryErrorKind = "no_tokens_received"
)

// String returns the string representation of EntryErrorKind.
func (k EntryErrorKind) String() string {
	return string(k)
}

// EntryError is a terminal failure of one entry attempt. Entries are never
// retried past these: the opportunity is stale by the time one surfaces.
type EntryError struct {
	Kind EntryErrorKind
	Mint string
	Err  error
}

// Error implements the error interface.
func (e *EntryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("entry %s: %s", e.Mint, e.Kind)
	}
	return fmt.Sprintf("entry %s: %s: %v", e.Mint, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EntryError) Unwrap() error {
	return e.Err
}

func entryErr(kind EntryErrorKind, mint string, err error) *EntryError {
	return &EntryError{Kind: kind, Mint: mint, Err: err}
}
