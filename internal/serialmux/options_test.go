package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestNormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaudRate, opts.BaudRate)
	assert.Equal(t, 8, opts.DataBits)
	assert.Equal(t, 1, opts.StopBits)
	assert.Equal(t, "N", opts.Parity)
}

func TestNormalizeParityAliases(t *testing.T) {
	cases := map[string]string{
		"n": "N", "NONE": "N", "e": "E", "even": "E", "O": "O", "odd": "O",
	}
	for in, want := range cases {
		opts, err := PortOptions{Parity: in}.Normalize()
		require.NoError(t, err, "parity %q", in)
		assert.Equal(t, want, opts.Parity, "parity %q", in)
	}
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	_, err := PortOptions{DataBits: 4}.Normalize()
	assert.Error(t, err)

	_, err = PortOptions{StopBits: 3}.Normalize()
	assert.Error(t, err)

	_, err = PortOptions{Parity: "M"}.Normalize()
	assert.Error(t, err)
}

func TestSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.StopBits(1), mode.StopBits)
}

func TestSerialModePropagatesNormalizeError(t *testing.T) {
	_, err := PortOptions{Parity: "bogus"}.SerialMode()
	assert.Error(t, err)
}
