package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := NewDB(filepath.Join(t.TempDir(), "servolink_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func intPtr(v int) *int { return &v }

func TestRecordAndListCommands(t *testing.T) {
	d := newTestDB(t)

	first, err := d.RecordCommand(SourceSerial, "45", "OK 45", intPtr(45))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.NotZero(t, first.CreatedAt)

	_, err = d.RecordCommand(SourceSerial, "200", "ERR range", nil)
	require.NoError(t, err)

	_, err = d.RecordCommand(SourceAPI, "120", "OK 120", intPtr(120))
	require.NoError(t, err)

	commands, err := d.RecentCommands(10)
	require.NoError(t, err)
	require.Len(t, commands, 3)

	// Newest first.
	assert.Equal(t, "120", commands[0].Line)
	assert.Equal(t, SourceAPI, commands[0].Source)
	require.NotNil(t, commands[0].Angle)
	assert.Equal(t, 120, *commands[0].Angle)

	assert.Equal(t, "200", commands[1].Line)
	assert.Nil(t, commands[1].Angle, "rejected commands have no angle")
}

func TestRecentCommandsLimit(t *testing.T) {
	d := newTestDB(t)
	for i := 0; i < 5; i++ {
		_, err := d.RecordCommand(SourceSerial, "90", "OK 90", intPtr(90))
		require.NoError(t, err)
	}

	commands, err := d.RecentCommands(3)
	require.NoError(t, err)
	assert.Len(t, commands, 3)
}

func TestRecentAnglesSkipsRejections(t *testing.T) {
	d := newTestDB(t)

	for _, rec := range []struct {
		line  string
		resp  string
		angle *int
	}{
		{"45", "OK 45", intPtr(45)},
		{"999", "ERR range", nil},
		{"120", "OK 120", intPtr(120)},
	} {
		_, err := d.RecordCommand(SourceSerial, rec.line, rec.resp, rec.angle)
		require.NoError(t, err)
	}

	angles, err := d.RecentAngles(10)
	require.NoError(t, err)
	assert.Equal(t, []float64{45, 120}, angles, "oldest first, rejections skipped")
}

func TestSystemPresetsSeeded(t *testing.T) {
	d := newTestDB(t)

	presets, err := d.GetAllAnglePresets()
	require.NoError(t, err)
	require.Len(t, presets, 3)

	// Ordered by angle.
	assert.Equal(t, "min", presets[0].Name)
	assert.Equal(t, 0, presets[0].Angle)
	assert.Equal(t, "home", presets[1].Name)
	assert.Equal(t, 90, presets[1].Angle)
	assert.Equal(t, "max", presets[2].Name)
	assert.Equal(t, 180, presets[2].Angle)
	for _, p := range presets {
		assert.True(t, p.IsSystem)
	}
}

func TestPresetCRUD(t *testing.T) {
	d := newTestDB(t)

	created, err := d.CreateAnglePreset(AnglePreset{Name: "camera", Angle: 135})
	require.NoError(t, err)
	assert.False(t, created.IsSystem)
	assert.Equal(t, 135, created.Angle)

	got, err := d.GetAnglePreset(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "camera", got.Name)

	updated, err := d.UpdateAnglePreset(created.ID, AnglePreset{Name: "camera2", Angle: 150})
	require.NoError(t, err)
	assert.Equal(t, "camera2", updated.Name)
	assert.Equal(t, 150, updated.Angle)

	require.NoError(t, d.DeleteAnglePreset(created.ID))
	_, err = d.GetAnglePreset(created.ID)
	assert.Error(t, err)
}

func TestPresetValidation(t *testing.T) {
	d := newTestDB(t)

	_, err := d.CreateAnglePreset(AnglePreset{Name: "bad", Angle: 181})
	assert.Error(t, err)

	_, err = d.CreateAnglePreset(AnglePreset{Angle: 90})
	assert.Error(t, err, "name required")
}

func TestSystemPresetsImmutable(t *testing.T) {
	d := newTestDB(t)

	presets, err := d.GetAllAnglePresets()
	require.NoError(t, err)
	home := presets[1]
	require.True(t, home.IsSystem)

	_, err = d.UpdateAnglePreset(home.ID, AnglePreset{Name: "hacked", Angle: 10})
	assert.Error(t, err)

	assert.Error(t, d.DeleteAnglePreset(home.ID))
}
