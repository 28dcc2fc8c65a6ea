package driver

// ConfigError is a custom error type for SDR tool configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// RuntimeError is a custom error type for missing or unusable SDR tools
type RuntimeError struct {
	msg string
}

func NewRuntimeError(msg string) *RuntimeError {
	return &RuntimeError{msg}
}

func (e *RuntimeError) Error() string {
	return e.msg
}

// Clamp limits a gain value to the range supported by a hardware path.
func Clamp(gain, lo, hi float64) float64 {
	return min(max(gain, lo), hi)
}
