package synth

import (
	"errors"
	"strings"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/otelsynth/pkg/catalog"
)

// ErrUnknownExporter matches any UnknownExporterError via errors.Is.
var ErrUnknownExporter = &UnknownExporterError{}

// UnknownExporterError reports every requested id missing from the catalog.
// Synthesis produces no document when it is returned.
type UnknownExporterError struct {
	IDs       []string
	Available []catalog.ExporterID
	err       *ewrap.Error
}

func newUnknownExporterError(ids []string, available []catalog.ExporterID) *UnknownExporterError {
	known := make([]string, 0, len(available))
	for _, id := range available {
		known = append(known, string(id))
	}

	err := ewrap.Newf(
		"unknown exporter ids: %s (available: %s)",
		strings.Join(ids, ", "),
		strings.Join(known, ", "),
	).WithContext(&ewrap.ErrorContext{
		Severity: ewrap.SeverityError,
		Type:     ewrap.ErrorTypeConfiguration,
	})

	return &UnknownExporterError{IDs: ids, Available: available, err: err}
}

// Error implements error.
func (e *UnknownExporterError) Error() string {
	if e == nil || e.err == nil {
		return "unknown exporter ids"
	}

	return e.err.Error()
}

// Unwrap implements errors.Wrapper.
func (e *UnknownExporterError) Unwrap() error {
	if e == nil || e.err == nil {
		return nil
	}

	return e.err
}

// Is implements errors.Is.
func (*UnknownExporterError) Is(target error) bool {
	_, ok := target.(*UnknownExporterError)

	return ok
}

// EmptySelectionWarning lists the signals whose pipeline carries only the
// diagnostic exporter. It never fails a synthesis call.
type EmptySelectionWarning struct {
	Signals []catalog.Signal
}

// Error implements error.
func (w *EmptySelectionWarning) Error() string {
	names := make([]string, 0, len(w.Signals))
	for _, sig := range w.Signals {
		names = append(names, string(sig))
	}

	return "no persistent exporter for signals: " + strings.Join(names, ", ")
}

// Is implements errors.Is.
func (*EmptySelectionWarning) Is(target error) bool {
	_, ok := target.(*EmptySelectionWarning)

	return ok
}

// AsEmptySelection extracts the empty selection warning from warnings, if any.
func AsEmptySelection(warnings []error) (*EmptySelectionWarning, bool) {
	for _, w := range warnings {
		var target *EmptySelectionWarning
		if errors.As(w, &target) {
			return target, true
		}
	}

	return nil, false
}
