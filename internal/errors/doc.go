// Package errors provides structured error types for the fatptr generator.
//
// Errors are categorised by Phase (where the error occurred) and Kind (error
// category), and carry the interface, concrete type and method involved:
//
//	err := errors.New(errors.PhaseConformance, errors.KindSignatureMismatch).
//		Interface("shapes.Describer").
//		Type("shapes.Circle").
//		Method("Describe").
//		Detail("have func() int, want func() string").
//		Build()
//
// Convenience constructors cover the common cases. All errors implement the
// standard error interface and support errors.Is/As; Is matches on Phase
// and Kind.
package errors
