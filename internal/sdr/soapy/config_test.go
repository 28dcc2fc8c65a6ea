package soapy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/cw-radar/internal/sdr"
	"github.com/roman-kulish/cw-radar/internal/sdr/driver"
)

func TestConfig_RxArgs(t *testing.T) {
	stream := sdr.StreamConfig{SampleRate: 6_000_000, CenterFreq: 1_000_000_000, Gain: 27}

	tests := []struct {
		name   string
		config Config
		gain   float64
		want   []string
	}{
		{
			name:   "defaults",
			config: Config{},
			gain:   27,
			want:   []string{"-f", "1000000000", "-s", "6000000", "-g", "27", "-F", "CF32", "-"},
		},
		{
			name:   "device and antenna",
			config: Config{DeviceArgs: "driver=lime", RxAntenna: "LNAW", Channel: 1, PPMError: 3},
			gain:   27,
			want: []string{"-d", "driver=lime", "-f", "1000000000", "-s", "6000000", "-g", "27", "-F", "CF32",
				"-c", "1", "-a", "LNAW", "-p", "3", "-"},
		},
		{
			name:   "gain clamped high",
			config: Config{},
			gain:   70,
			want:   []string{"-f", "1000000000", "-s", "6000000", "-g", "61", "-F", "CF32", "-"},
		},
		{
			name:   "gain clamped low",
			config: Config{},
			gain:   -20,
			want:   []string{"-f", "1000000000", "-s", "6000000", "-g", "-12", "-F", "CF32", "-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stream
			s.Gain = tt.gain

			got, err := tt.config.RxArgs(s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_TxArgs(t *testing.T) {
	stream := sdr.StreamConfig{SampleRate: 6_000_000, CenterFreq: 1_000_000_000, Gain: 63}

	c := Config{}
	got, err := c.TxArgs(stream)
	require.NoError(t, err)
	assert.Contains(t, got, "63", "63 dB is within the transmit range")

	txGain := 80.0
	c.TxGain = &txGain
	got, err = c.TxArgs(stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"-f", "1000000000", "-s", "6000000", "-g", "64", "-F", "CF32", "-"}, got)
}

func TestConfig_Invalid(t *testing.T) {
	var cerr *driver.ConfigError

	_, err := (&Config{Channel: -1}).RxArgs(sdr.StreamConfig{SampleRate: 1, CenterFreq: 1})
	assert.True(t, errors.As(err, &cerr))

	_, err = (&Config{}).RxArgs(sdr.StreamConfig{CenterFreq: 1})
	assert.True(t, errors.As(err, &cerr))

	_, err = (&Config{DeviceArgs: "driver=lime serial=1"}).TxArgs(sdr.StreamConfig{SampleRate: 1, CenterFreq: 1})
	assert.True(t, errors.As(err, &cerr))
}
