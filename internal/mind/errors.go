package mind

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResponse is returned when the generator answered with nothing usable.
	ErrEmptyResponse = errors.New("generator returned empty response")
	// ErrMalformedProposal is returned when a trait proposal cannot be parsed.
	ErrMalformedProposal = errors.New("malformed trait proposal")
	// ErrAnchorImmutable is returned by ApplyPatch when a patch would alter the core anchor.
	ErrAnchorImmutable = errors.New("core anchor is immutable")
	// ErrNoGenerator is returned when a cycle that needs text generation has none.
	ErrNoGenerator = errors.New("no text generator configured")
)

// ValidationError reports an input outside its declared bounds.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func checkRange(field string, v, lo, hi float64) error {
	if v != v || v < lo || v > hi { // v != v catches NaN
		return &ValidationError{Field: field, Value: v, Reason: fmt.Sprintf("must be within [%g, %g]", lo, hi)}
	}
	return nil
}

// Validate checks every axis against its bound.
func (m MoodVector) Validate() error {
	return errors.Join(
		checkRange("mood.valence", m.Valence, -1, 1),
		checkRange("mood.arousal", m.Arousal, 0, 1),
		checkRange("mood.dominance", m.Dominance, 0, 1),
	)
}

// Validate checks every trait is within [0,1].
func (p PersonalityBaseline) Validate() error {
	var errs []error
	for _, t := range Traits {
		errs = append(errs, checkRange("personality."+string(t), p.Get(t), 0, 1))
	}
	return errors.Join(errs...)
}

// Validate checks a definition before it is stored.
func (d *NPCDefinition) Validate() error {
	var errs []error
	if strings.TrimSpace(d.ID) == "" {
		errs = append(errs, &ValidationError{Field: "id", Value: d.ID, Reason: "must not be empty"})
	}
	if strings.ContainsAny(d.ID, "/ ") {
		errs = append(errs, &ValidationError{Field: "id", Value: d.ID, Reason: "must not contain '/' or spaces"})
	}
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, &ValidationError{Field: "name", Value: d.Name, Reason: "must not be empty"})
	}
	if strings.TrimSpace(d.CoreAnchor.Backstory) == "" {
		errs = append(errs, &ValidationError{Field: "core_anchor.backstory", Value: "", Reason: "must not be empty"})
	}
	errs = append(errs, d.Personality.Validate())
	if d.Memory.ShortTermCap < 0 {
		errs = append(errs, &ValidationError{Field: "memory.short_term_cap", Value: d.Memory.ShortTermCap, Reason: "must not be negative"})
	}
	if d.Memory.LongTermCap < 0 {
		errs = append(errs, &ValidationError{Field: "memory.long_term_cap", Value: d.Memory.LongTermCap, Reason: "must not be negative"})
	}
	errs = append(errs, checkRange("memory.salience_threshold", d.Memory.SalienceThreshold, 0, 1))
	for cat, tiers := range d.Knowledge {
		for depth := range tiers {
			if depth < 1 {
				errs = append(errs, &ValidationError{Field: "knowledge." + cat, Value: depth, Reason: "depth tiers start at 1"})
			}
		}
	}
	return errors.Join(errs...)
}
