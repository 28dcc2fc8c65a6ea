package soapy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roman-kulish/cw-radar/internal/sdr"
	"github.com/roman-kulish/cw-radar/internal/sdr/driver"
)

const (
	// Receive path gain range of the LimeSDR front end
	RxGainMin = -12
	RxGainMax = 61

	// Transmit path gain range of the LimeSDR front end
	TxGainMin = -12
	TxGainMax = 64

	// SampleFormat is the only output format the streamer decodes
	SampleFormat = "CF32"
)

// Config is the SoapySDR tool configuration shared by `rx_sdr` and `tx_sdr`.
//
// Example:
//
//	soapyConfig := soapy.Config{
//	    DeviceArgs: "driver=lime",
//	    Transmit:   true,
//	}
//	// Executes: rx_sdr -d driver=lime -f 1000000000 -s 6000000 -g 27 -F CF32 -
//	//           tx_sdr -d driver=lime -f 1000000000 -s 6000000 -g 27 -F CF32 -
type Config struct {
	DeviceArgs string `yaml:"deviceArgs" json:"deviceArgs"` // -d SoapySDR device args, e.g. "driver=lime"
	Channel    int    `yaml:"channel" json:"channel"`       // -c channel index (default: 0)
	RxAntenna  string `yaml:"rxAntenna" json:"rxAntenna"`   // -a receive antenna (default: driver choice)
	TxAntenna  string `yaml:"txAntenna" json:"txAntenna"`   // -a transmit antenna (default: driver choice)
	PPMError   int    `yaml:"ppmError" json:"ppmError"`     // -p ppm_error (default: 0)
	BlockSize  int    `yaml:"blockSize" json:"blockSize"`   // -b output block size in samples

	Transmit bool     `yaml:"transmit" json:"transmit"` // drive the IF tone on the transmit path
	TxGain   *float64 `yaml:"txGain" json:"txGain"`     // dB, defaults to the receive gain
}

func (c *Config) Validate() error {
	if c.Channel < 0 {
		return driver.NewConfigError(fmt.Sprintf("soapy.Config: channel must not be negative: %d", c.Channel))
	}
	if c.BlockSize < 0 {
		return driver.NewConfigError(fmt.Sprintf("soapy.Config: block size must not be negative: %d", c.BlockSize))
	}
	if strings.ContainsAny(c.DeviceArgs, " \t\n") {
		return driver.NewConfigError(fmt.Sprintf("soapy.Config: device args must not contain whitespace: %q", c.DeviceArgs))
	}

	return nil
}

func validateStream(cfg sdr.StreamConfig) error {
	if cfg.SampleRate <= 0 {
		return driver.NewConfigError(fmt.Sprintf("soapy.Config: sample rate must be positive: %.0f", cfg.SampleRate))
	}
	if cfg.CenterFreq <= 0 {
		return driver.NewConfigError(fmt.Sprintf("soapy.Config: center frequency must be positive: %.0f", cfg.CenterFreq))
	}
	return nil
}

// RxArgs returns the command line arguments for `rx_sdr`. The gain is
// clamped to the receive path range.
func (c *Config) RxArgs(cfg sdr.StreamConfig) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := validateStream(cfg); err != nil {
		return nil, err
	}

	args := c.commonArgs(cfg, driver.Clamp(cfg.Gain, RxGainMin, RxGainMax), c.RxAntenna)

	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

// TxArgs returns the command line arguments for `tx_sdr`. The gain is
// clamped to the transmit path range.
func (c *Config) TxArgs(cfg sdr.StreamConfig) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := validateStream(cfg); err != nil {
		return nil, err
	}

	gain := cfg.Gain
	if c.TxGain != nil {
		gain = *c.TxGain
	}

	args := c.commonArgs(cfg, driver.Clamp(gain, TxGainMin, TxGainMax), c.TxAntenna)
	args = append(args, "-") // Always read from stdin

	return args, nil
}

func (c *Config) commonArgs(cfg sdr.StreamConfig, gain float64, antenna string) []string {
	var args []string

	if c.DeviceArgs != "" {
		args = append(args, "-d", c.DeviceArgs)
	}

	args = append(args,
		"-f", strconv.FormatFloat(cfg.CenterFreq, 'f', 0, 64),
		"-s", strconv.FormatFloat(cfg.SampleRate, 'f', 0, 64),
		"-g", strconv.FormatFloat(gain, 'f', -1, 64),
		"-F", SampleFormat,
	)

	if c.Channel > 0 {
		args = append(args, "-c", strconv.Itoa(c.Channel))
	}

	if antenna != "" {
		args = append(args, "-a", antenna)
	}

	if c.BlockSize > 0 {
		args = append(args, "-b", strconv.Itoa(c.BlockSize))
	}

	return args
}
