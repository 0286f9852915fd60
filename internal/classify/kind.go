// Package classify maps heterogeneous failures from external collaborators
// into a closed taxonomy with a retryability flag, and provides the backoff
// helper that honors that flag.
package classify

// Kind is the category of a classified failure.
type Kind string

const (
	KindNetwork        Kind = "NETWORK_ERROR"
	KindRateLimit      Kind = "RATE_LIMIT"
	KindTimeout        Kind = "TIMEOUT"
	KindServer         Kind = "SERVER_ERROR"
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	KindValidation     Kind = "VALIDATION_ERROR"
	KindNotFound       Kind = "NOT_FOUND"
	KindConfiguration  Kind = "CONFIGURATION_ERROR"
	KindParsing        Kind = "PARSING_ERROR"
	KindUnknown        Kind = "UNKNOWN_ERROR"
)

// Retryable reports whether an operation failing with this kind may succeed
// on a later attempt without operator intervention.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindRateLimit, KindTimeout, KindServer:
		return true
	default:
		return false
	}
}
