package models

import "fmt"

// ValidationError is returned for bad input before any store or provisioner
// call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateAgentName accepts names that are safe both as a parameter path
// segment and, with '_' mapped to '-', inside a stack name: a leading ASCII
// letter followed by letters, digits, '_' or '-'.
func ValidateAgentName(name string) error {
	if name == "" {
		return &ValidationError{Field: "agent_name", Reason: "must not be empty"}
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i == 0:
			return &ValidationError{Field: "agent_name", Reason: "must start with a letter"}
		case r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return &ValidationError{Field: "agent_name", Reason: fmt.Sprintf("must not contain %q", r)}
		}
	}
	return nil
}
