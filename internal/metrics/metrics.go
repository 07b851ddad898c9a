// Package metrics records import and classifier activity.
package metrics

import (
	"time"
)

// Recorder defines the interface for collecting import metrics.
// Implementations can export metrics to various backends.
type Recorder interface {
	// RecordImport is called once per completed import call. source is the parser name, or
	// "none" when no transactions were found.
	RecordImport(source string, imported, duplicates, skipped int, duration time.Duration)
	// RecordImportError is called when an import fails before producing a result.
	RecordImportError(reason string)
	// RecordClassifier is called once per classifier batch. outcome is one of the Outcome*
	// constants.
	RecordClassifier(outcome string, duration time.Duration)
	RecordCircuitState(name string, state CircuitState)
}

// Classifier outcomes
const (
	OutcomeClassified = "classified"
	OutcomeFallback   = "fallback"
	OutcomeRejected   = "rejected"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the service has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOp is a Recorder that discards everything.
type NoOp struct{}

func (NoOp) RecordImport(source string, imported, duplicates, skipped int, duration time.Duration) {}
func (NoOp) RecordImportError(reason string)                                                      {}
func (NoOp) RecordClassifier(outcome string, duration time.Duration)                              {}
func (NoOp) RecordCircuitState(name string, state CircuitState)                                   {}
