// Package common contains shared constants and sentinel errors used across
// tokenkeeper components.
package common

// AuthorizationHeaderName is the HTTP header (and gRPC metadata key, lower
// cased) used to carry the bearer token on outbound requests.
const AuthorizationHeaderName = "Authorization"

// GRPCAuthorizationKey is the gRPC metadata key for the bearer token.
const GRPCAuthorizationKey = "authorization"

// BearerScheme prefixes the token in the Authorization header.
const BearerScheme = "Bearer"

// RequestIDHeaderName tags every outbound call for log correlation.
const RequestIDHeaderName = "X-Request-ID"

// Metadata keys under which the session is persisted.
const (
	TokenKey   = "auth.token"
	ProfileKey = "auth.profile"
)
