package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants, grouped by failure class. Handlers and services
// MUST use these constants instead of hardcoded strings so that log
// queries and alert routing stay stable.
const (
	// Trust failures: the sender could not be authenticated.
	ErrCodeTrustBadSignature ErrorCode = "trust_bad_signature"
	ErrCodeTrustNoSignature  ErrorCode = "trust_signature_absent"
	ErrCodeTrustBadEnvelope  ErrorCode = "trust_envelope_validation_failed"

	// Decryption failures: the envelope could not be opened.
	ErrCodeDecryptKeyRecovery ErrorCode = "decrypt_key_recovery_failed"
	ErrCodeDecryptPayload     ErrorCode = "decrypt_payload_failed"
	ErrCodeDecryptMalformed   ErrorCode = "decrypt_malformed_envelope"

	// Schema failures: the payload did not have a usable shape.
	ErrCodeSchemaUnknownTopic ErrorCode = "schema_unknown_topic"
	ErrCodeSchemaBadPayload   ErrorCode = "schema_malformed_payload"

	// Sink failures: a downstream best-effort write did not complete.
	ErrCodeSinkChatSend   ErrorCode = "sink_chat_send_failed"
	ErrCodeSinkAuditStore ErrorCode = "sink_audit_store_failed"

	// Lifecycle failures: a background renewal did not complete.
	ErrCodeLifecycleTokenRefresh  ErrorCode = "lifecycle_token_refresh_failed"
	ErrCodeLifecycleTokenExchange ErrorCode = "lifecycle_token_exchange_failed"
	ErrCodeLifecycleSubscription  ErrorCode = "lifecycle_subscription_failed"
	ErrCodeLifecycleNoCredential  ErrorCode = "lifecycle_no_credential"

	// Upstream/internal
	ErrCodeUpstreamGraph       ErrorCode = "upstream_graph_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeConfigInvalid       ErrorCode = "config_invalid"
)

// AppError is the standard application error type used throughout the
// gateway. All domain errors should be expressed as AppError to enable
// consistent log formatting and error-class routing (trust failures are
// acknowledged generically, sink failures are reported and swallowed, and
// so on per the failure taxonomy).
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
