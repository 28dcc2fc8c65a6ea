package soapy

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/roman-kulish/cw-radar/internal/sdr"
	"github.com/roman-kulish/cw-radar/internal/sdr/driver"
)

const (
	RxRuntime = "rx_sdr"
	TxRuntime = "tx_sdr"
	Device    = "SoapySDR"
)

// handler runs `rx_sdr` for the receive path
type handler struct {
	rxPath string
	config *Config
}

// txHandler additionally runs `tx_sdr` for the transmit path
type txHandler struct {
	handler
	txPath string
}

// New creates a new SoapySDR handler. When transmit is enabled the returned
// handler also implements sdr.Transmitter.
func New(config *Config) (sdr.Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rxPath, err := driver.FindRuntime(RxRuntime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	h := handler{rxPath: rxPath, config: config}
	if !config.Transmit {
		return &h, nil
	}

	txPath, err := driver.FindRuntime(TxRuntime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	return &txHandler{handler: h, txPath: txPath}, nil
}

// Cmd returns an exec.Cmd streaming CF32 samples to stdout
func (h *handler) Cmd(ctx context.Context, cfg sdr.StreamConfig) (*exec.Cmd, error) {
	args, err := h.config.RxArgs(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating args: %w", err)
	}

	return exec.CommandContext(ctx, h.rxPath, args...), nil
}

func (h *handler) Device() string {
	return Device
}

// TxCmd returns an exec.Cmd transmitting CF32 samples read from stdin
func (h *txHandler) TxCmd(ctx context.Context, cfg sdr.StreamConfig) (*exec.Cmd, error) {
	args, err := h.config.TxArgs(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating args: %w", err)
	}

	return exec.CommandContext(ctx, h.txPath, args...), nil
}
