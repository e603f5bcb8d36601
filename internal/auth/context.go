package auth

import "context"

type subjectKey struct{}

// WithSubject stores the authenticated subject on ctx.
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	if subject == nil {
		return ctx
	}
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the subject stored by WithSubject, or nil.
func SubjectFromContext(ctx context.Context) *Subject {
	if ctx == nil {
		return nil
	}
	subject, _ := ctx.Value(subjectKey{}).(*Subject)
	return subject
}
