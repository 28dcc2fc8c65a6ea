package trigger

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	// Auto selects the first serial port whose USB product description
	// contains SerialConfig.Description.
	Auto = "auto"

	DefaultBaudRate    = 9600
	DefaultDescription = "Nano"
)

var ErrNoSerialDevice = errors.New("no serial trigger device found")

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// openPort is replaced in tests.
var openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

// SerialConfig describes a serial trigger device
type SerialConfig struct {
	Port        string // device name, such as /dev/ttyUSB0, or Auto
	Description string // matched against the USB product when Port is Auto
	BaudRate    int
}

func (c SerialConfig) description() string {
	if c.Description == "" {
		return DefaultDescription
	}
	return c.Description
}

func (c SerialConfig) baudRate() int {
	if c.BaudRate <= 0 {
		return DefaultBaudRate
	}
	return c.BaudRate
}

// Discover returns the name of the first serial port whose product
// description contains description.
func Discover(description string) (string, error) {
	ports, err := listPorts()
	if err != nil {
		return "", fmt.Errorf("listing serial ports: %w", err)
	}

	for _, port := range ports {
		if port.Product != "" && strings.Contains(port.Product, description) {
			return port.Name, nil
		}
	}

	return "", fmt.Errorf("%w: no port matches '%s' (%d ports)", ErrNoSerialDevice, description, len(ports))
}

// OpenSerial configures the serial port and creates a source reading its
// lines. The source owns the port.
func OpenSerial(cfg SerialConfig, options ...func(s *LineSource)) (*LineSource, error) {
	name := cfg.Port
	if name == "" || name == Auto {
		var err error
		if name, err = Discover(cfg.description()); err != nil {
			return nil, err
		}
	}

	port, err := openPort(name, &serial.Mode{
		BaudRate: cfg.baudRate(),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial trigger %s: %w", name, err)
	}

	s := NewLineSource(name, port, options...)
	s.closer = port
	return s, nil
}
