// Package common contains helpers shared by the blockview services.
package common

// ContextKey is the type of context keys set by blockview middleware.
type ContextKey string

const (
	// RequestIDContextKey holds the uuid.UUID assigned to an HTTP request.
	RequestIDContextKey ContextKey = "request_id"
)
