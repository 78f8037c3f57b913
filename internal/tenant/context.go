package tenant

import (
	"context"
	"errors"
)

// Key for tenant ID in context
type contextKey string

const (
	organizationIDKey contextKey = "organizationID"
	requestIDKey      contextKey = "requestID"
)

// ErrOrganizationIDNotFound is returned when no organization ID is found in context
var ErrOrganizationIDNotFound = errors.New("organization ID not found in context")

// WithOrganizationID adds a tenant organization ID to the context
func WithOrganizationID(ctx context.Context, organizationID int64) context.Context {
	return context.WithValue(ctx, organizationIDKey, organizationID)
}

// FromContext extracts the tenant organization ID from the context
func FromContext(ctx context.Context) (int64, error) {
	organizationID, ok := ctx.Value(organizationIDKey).(int64)
	if !ok || organizationID == 0 {
		return 0, ErrOrganizationIDNotFound
	}
	return organizationID, nil
}

// MustFromContext extracts the tenant organization ID from the context or panics
func MustFromContext(ctx context.Context) int64 {
	organizationID, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return organizationID
}

// ErrNoRequestIDInContext is returned when no request ID is found in context
var ErrNoRequestIDInContext = errors.New("no request ID found in context")

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// FromRequestIDContext extracts the request ID from the context
func FromRequestIDContext(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "", ErrNoRequestIDInContext
	}
	return requestID, nil
}
