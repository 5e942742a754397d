package grading

// ValidationError reports malformed grading input: an answer that references
// a question the quiz does not contain, a duplicate answer for one question,
// or a question with a negative point value.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// StateError reports an operation against an attempt that is already in a
// terminal status, or against a quiz whose question list is inconsistent.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string { return "state: " + e.Reason }
