package sheetmap

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// ValidationResult is the outcome of validating one imported record.
type ValidationResult struct {
	Valid  bool                `json:"valid"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func NewValidationResult() ValidationResult {
	return ValidationResult{Valid: true}
}

// AddError records a message under key and marks the result invalid.
func (r *ValidationResult) AddError(key, msg string) {
	if r.Errors == nil {
		r.Errors = make(map[string][]string)
	}
	r.Errors[key] = append(r.Errors[key], msg)
	r.Valid = false
}

// Merge folds other into r.
func (r *ValidationResult) Merge(other ValidationResult) {
	for key, msgs := range other.Errors {
		for _, msg := range msgs {
			r.AddError(key, msg)
		}
	}
	if !other.Valid {
		r.Valid = false
	}
}

// constraintValidator checks the required, max length and pattern
// constraints declared on the columns.
type constraintValidator[T any] struct {
	set *descriptorSet[T]
}

func (v constraintValidator[T]) Validate(rec *T) ValidationResult {
	result := NewValidationResult()
	if rec == nil {
		return result
	}
	for _, d := range v.set.all {
		if d.ignored || d.shadow {
			continue
		}
		if !d.required && d.maxLength == 0 && d.pattern == nil {
			continue
		}
		value := deref(d.value(rec))
		text, isText := value.(string)
		if d.required && missing(value) {
			result.AddError(d.title, fmt.Sprintf("%s is required", d.title))
			continue
		}
		if !isText || text == "" {
			continue
		}
		if d.maxLength > 0 && utf8.RuneCountInString(text) > d.maxLength {
			result.AddError(d.title, fmt.Sprintf("%s must be at most %d characters", d.title, d.maxLength))
		}
		if d.pattern != nil && !d.pattern.MatchString(text) {
			result.AddError(d.title, fmt.Sprintf("%s has an invalid format", d.title))
		}
	}
	return result
}

// missing reports whether a required value is absent: nil, an empty string
// or a zero time.
func missing(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case time.Time:
		return v.IsZero()
	}
	return false
}
