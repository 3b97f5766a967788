package goarraycore

import "fmt"

// ConfigurationError reports an invalid array description. It is returned
// at construction time; nothing is computed for a configuration that fails.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid array configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid array configuration: %s: %s", e.Field, e.Reason)
}

func configErr(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
