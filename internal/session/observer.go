package session

import "slices"

// Predicate decides whether an observer wants a field notification.
type Predicate func(s *Session, f Field) bool

// Action receives a detached snapshot of the session and the changed field.
// It runs on the goroutine that made the change and must not block.
type Action func(s *Session, f Field)

// Observer pairs a predicate with an action. Name identifies it for Attach
// and Detach.
type Observer struct {
	Name string
	When Predicate
	Do   Action
}

// OnFields accepts notifications for any of the listed fields.
func OnFields(fields ...Field) Predicate {
	return func(_ *Session, f Field) bool {
		return slices.Contains(fields, f)
	}
}

// Always accepts every notification.
func Always(*Session, Field) bool { return true }
