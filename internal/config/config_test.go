package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servolink.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadSettingsDefaultsWhenFileMissing(t *testing.T) {
	s, err := LoadSettings(DefaultConfigPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettingsMissingExplicitFileFails(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestPartialConfigOverridesOnlyNamedFields(t *testing.T) {
	path := writeConfig(t, `{"default_angle": 45, "settle_delay": "1s"}`)

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, 45, s.DefaultAngle)
	assert.Equal(t, time.Second, s.SettleDelay)
	// Untouched fields keep their defaults.
	assert.Equal(t, ":8080", s.Listen)
	assert.Equal(t, ActuatorSim, s.Actuator)
}

func TestFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"serial_port": "/dev/ttySC1",
		"baud_rate": 57600,
		"parity": "even",
		"listen": ":9090",
		"db_path": "bridge.db",
		"default_angle": 10,
		"min_interval": "100ms",
		"min_step": 2,
		"actuator": "feetech",
		"bus_port": "/dev/ttyACM1",
		"servo_id": 4
	}`)

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttySC1", s.SerialPort)
	assert.Equal(t, 57600, s.Port.BaudRate)
	assert.Equal(t, "even", s.Port.Parity)
	assert.Equal(t, ":9090", s.Listen)
	assert.Equal(t, "bridge.db", s.DBPath)
	assert.Equal(t, 10, s.DefaultAngle)
	assert.Equal(t, 100*time.Millisecond, s.MinInterval)
	assert.Equal(t, 2, s.MinStep)
	assert.Equal(t, ActuatorFeetech, s.Actuator)
	assert.Equal(t, "/dev/ttyACM1", s.BusPort)
	assert.Equal(t, 4, s.ServoID)
}

func TestRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"angle out of range": `{"default_angle": 181}`,
		"bad duration":       `{"settle_delay": "fast"}`,
		"unknown actuator":   `{"actuator": "stepper"}`,
		"bad parity":         `{"parity": "Q"}`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSettings(writeConfig(t, contents))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servolink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
