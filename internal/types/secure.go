package types

import "log/slog"

// redactedPlaceholder replaces secret material anywhere a SecretString is
// printed or serialized.
const redactedPlaceholder = "***REDACTED***"

// SecretString holds the configuration secrets this service carries: the
// Postgres DSN, the Stripe API key, and the webhook signing secret. It
// satisfies fmt.Stringer, json.Marshaler, and slog.LogValuer with a fixed
// placeholder, so a secret that ends up in a log line, an error message, or
// a serialized config dump reveals nothing. Unmask is the only way back to
// the plaintext.
type SecretString string

// String implements fmt.Stringer.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON implements json.Marshaler.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// LogValue implements slog.LogValuer, covering structured log attributes
// that bypass fmt entirely.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the plaintext. Call sites should hand the value straight to
// its consumer (the pgx pool config, an Authorization header) rather than
// store it anywhere else.
func (s SecretString) Unmask() string {
	return string(s)
}
