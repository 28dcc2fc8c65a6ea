package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// fakePort serves canned lines. Methods the source never calls are left to
// the embedded nil interface.
type fakePort struct {
	serial.Port
	r      *strings.Reader
	closed bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func stubPorts(t *testing.T, ports []*enumerator.PortDetails, err error) {
	t.Helper()

	saved := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) { return ports, err }
	t.Cleanup(func() { listPorts = saved })
}

func stubOpen(t *testing.T, port serial.Port, err error) *[]string {
	t.Helper()

	var opened []string
	saved := openPort
	openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		opened = append(opened, fmt.Sprintf("%s@%d", name, mode.BaudRate))
		return port, err
	}
	t.Cleanup(func() { openPort = saved })
	return &opened
}

var testPorts = []*enumerator.PortDetails{
	{Name: "/dev/ttyS0"},
	{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043", Product: "Arduino Uno"},
	{Name: "/dev/ttyUSB0", IsUSB: true, VID: "2341", PID: "0058", Product: "Arduino Nano Every"},
}

func TestDiscover(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        string
		wantErr     error
	}{
		{name: "nano", description: "Nano", want: "/dev/ttyUSB0"},
		{name: "first match", description: "Arduino", want: "/dev/ttyACM0"},
		{name: "no match", description: "Mega", wantErr: ErrNoSerialDevice},
	}

	stubPorts(t, testPorts, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Discover(tt.description)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscover_ListError(t *testing.T) {
	stubPorts(t, nil, errors.New("permission denied"))

	_, err := Discover(DefaultDescription)
	assert.ErrorContains(t, err, "permission denied")
}

func TestOpenSerial(t *testing.T) {
	t.Run("auto", func(t *testing.T) {
		port := &fakePort{r: strings.NewReader("ready\nTRIG\n")}
		stubPorts(t, testPorts, nil)
		opened := stubOpen(t, port, nil)

		s, err := OpenSerial(SerialConfig{Port: Auto}, WithMatch("TRIG"))
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyUSB0", s.Name())
		assert.Equal(t, []string{"/dev/ttyUSB0@9600"}, *opened)

		var tr countingTriggerer
		require.NoError(t, s.Run(context.Background(), &tr))
		assert.Equal(t, int32(1), tr.calls.Load())

		require.NoError(t, s.Close())
		assert.True(t, port.closed)
	})

	t.Run("named port", func(t *testing.T) {
		stubPorts(t, nil, errors.New("must not be listed"))
		opened := stubOpen(t, &fakePort{r: strings.NewReader("")}, nil)

		s, err := OpenSerial(SerialConfig{Port: "/dev/ttyACM1", BaudRate: 115200})
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, []string{"/dev/ttyACM1@115200"}, *opened)
	})

	t.Run("no device", func(t *testing.T) {
		stubPorts(t, testPorts[:1], nil)
		stubOpen(t, nil, errors.New("must not be opened"))

		_, err := OpenSerial(SerialConfig{Port: Auto})
		assert.ErrorIs(t, err, ErrNoSerialDevice)
	})

	t.Run("open error", func(t *testing.T) {
		stubOpen(t, nil, errors.New("port busy"))

		_, err := OpenSerial(SerialConfig{Port: "/dev/ttyUSB0"})
		assert.ErrorContains(t, err, "port busy")
	})
}
