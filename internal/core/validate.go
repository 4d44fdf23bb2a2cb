package core

import (
	"fmt"
	"strings"
)

// FieldError describes a single schema violation in a provider response.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates all violations found in one response so a
// repair prompt can report every problem at once.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateRaw enforces the Decision schema on a raw provider entry.
//
// knownSources is the set of source IDs submitted in the current batch;
// a decision referencing anything else is rejected. Ticker symbols are
// normalized to uppercase. Returns the validated fields and a nil error
// slice on success.
func ValidateRaw(raw RawDecision, knownSources map[string]struct{}) (Decision, ValidationErrors) {
	var errs ValidationErrors

	signal, err := ParseSignal(strings.ToUpper(strings.TrimSpace(raw.Signal)))
	if err != nil {
		errs = append(errs, FieldError{Field: "signal", Message: err.Error()})
	}

	if raw.Confidence < 0 || raw.Confidence > 100 {
		errs = append(errs, FieldError{
			Field:   "confidence",
			Message: fmt.Sprintf("must be an integer in [0,100], got %d", raw.Confidence),
		})
	}

	ticker := strings.ToUpper(strings.TrimSpace(raw.Ticker))
	if ticker == "" {
		errs = append(errs, FieldError{Field: "ticker", Message: "must not be empty"})
	}

	if raw.SourceID == "" {
		errs = append(errs, FieldError{Field: "source_id", Message: "must not be empty"})
	} else if knownSources != nil {
		if _, ok := knownSources[raw.SourceID]; !ok {
			errs = append(errs, FieldError{
				Field:   "source_id",
				Message: fmt.Sprintf("%q does not match any submitted chunk", raw.SourceID),
			})
		}
	}

	if len(errs) > 0 {
		return Decision{}, errs
	}

	return Decision{
		SourceID:   raw.SourceID,
		Ticker:     ticker,
		Signal:     signal,
		Confidence: raw.Confidence,
		Reasoning:  raw.Reasoning,
	}, nil
}
