package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from either a Go duration string
// ("2s", "1500ms") or a plain number of seconds.
type Duration time.Duration

func NewDuration(d time.Duration) Duration {
	return Duration(d)
}

func parseDuration(s string) (Duration, error) {
	if duration, err := time.ParseDuration(s); err == nil {
		return Duration(duration), nil
	}

	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("config.Duration: failed to parse %q", s)
	}

	return Duration(seconds * float64(time.Second)), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := parseDuration(value.Value)
	if err != nil {
		return err
	}

	*d = duration
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(bytes []byte) error {
	var v any
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	var (
		duration Duration
		err      error
	)

	switch v := v.(type) {
	case string:
		duration, err = parseDuration(v)
	case float64:
		duration = Duration(v * float64(time.Second))
	default:
		err = fmt.Errorf("config.Duration: unsupported value %v", v)
	}
	if err != nil {
		return err
	}

	*d = duration
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) Validate() error {
	if d <= 0 {
		return fmt.Errorf("config.Duration: must be positive: %s", d)
	}

	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) Seconds() float64 {
	return time.Duration(d).Seconds()
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
