package ai

import "errors"

// ErrUnavailable means the provider cannot serve requests at all, usually
// because no API key is configured. Callers may fall back or surface a
// service-unavailable response; transient upstream errors are returned
// as-is instead.
var ErrUnavailable = errors.New("ai provider unavailable")
