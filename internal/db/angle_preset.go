package db

import (
	"database/sql"
	"fmt"

	"github.com/gimbalworks/servolink/internal/units"
)

// AnglePreset is a named servo position. System presets (home, min, max) are
// seeded at first start and cannot be modified or deleted.
type AnglePreset struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Angle     int    `json:"angle"`
	IsSystem  bool   `json:"is_system"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// GetAllAnglePresets retrieves all angle presets ordered by angle.
func (db *DB) GetAllAnglePresets() ([]AnglePreset, error) {
	rows, err := db.Query(`
		SELECT preset_id, name, angle, is_system, created_at, updated_at
		FROM angle_presets
		ORDER BY angle ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query angle presets: %w", err)
	}
	defer rows.Close()

	var presets []AnglePreset
	for rows.Next() {
		var preset AnglePreset
		var isSystem int
		if err := rows.Scan(&preset.ID, &preset.Name, &preset.Angle, &isSystem, &preset.CreatedAt, &preset.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan angle preset: %w", err)
		}
		preset.IsSystem = isSystem == 1
		presets = append(presets, preset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating angle presets: %w", err)
	}
	return presets, nil
}

// GetAnglePreset retrieves a specific angle preset by ID.
func (db *DB) GetAnglePreset(id int) (*AnglePreset, error) {
	var preset AnglePreset
	var isSystem int
	err := db.QueryRow(`
		SELECT preset_id, name, angle, is_system, created_at, updated_at
		FROM angle_presets
		WHERE preset_id = ?
	`, id).Scan(&preset.ID, &preset.Name, &preset.Angle, &isSystem, &preset.CreatedAt, &preset.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("angle preset not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query angle preset: %w", err)
	}

	preset.IsSystem = isSystem == 1
	return &preset, nil
}

// CreateAnglePreset creates a new user preset.
func (db *DB) CreateAnglePreset(preset AnglePreset) (*AnglePreset, error) {
	if !units.InRange(preset.Angle) {
		return nil, fmt.Errorf("preset angle %d outside [%d, %d]", preset.Angle, units.MinAngle, units.MaxAngle)
	}
	if preset.Name == "" {
		return nil, fmt.Errorf("preset name is required")
	}

	result, err := db.Exec(`
		INSERT INTO angle_presets (name, angle, is_system)
		VALUES (?, ?, 0)
	`, preset.Name, preset.Angle)
	if err != nil {
		return nil, fmt.Errorf("failed to create angle preset: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return db.GetAnglePreset(int(id))
}

// UpdateAnglePreset updates a user preset. System presets are immutable.
func (db *DB) UpdateAnglePreset(id int, preset AnglePreset) (*AnglePreset, error) {
	existing, err := db.GetAnglePreset(id)
	if err != nil {
		return nil, err
	}
	if existing.IsSystem {
		return nil, fmt.Errorf("cannot update system preset")
	}
	if !units.InRange(preset.Angle) {
		return nil, fmt.Errorf("preset angle %d outside [%d, %d]", preset.Angle, units.MinAngle, units.MaxAngle)
	}

	name := preset.Name
	if name == "" {
		name = existing.Name
	}

	_, err = db.Exec(`
		UPDATE angle_presets
		SET name = ?, angle = ?, updated_at = strftime('%s','now')
		WHERE preset_id = ?
	`, name, preset.Angle, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update angle preset: %w", err)
	}
	return db.GetAnglePreset(id)
}

// DeleteAnglePreset deletes a user preset. System presets cannot be removed.
func (db *DB) DeleteAnglePreset(id int) error {
	result, err := db.Exec(`DELETE FROM angle_presets WHERE preset_id = ? AND is_system = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to delete angle preset: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("angle preset not found or cannot be deleted: %d", id)
	}
	return nil
}
