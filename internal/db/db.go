// Package db persists the servo bridge's command log and angle presets in
// SQLite.
package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the SQLite database at path and
// ensures the bootstrap schema exists.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS commands (
			command_id        TEXT PRIMARY KEY,
			source            TEXT NOT NULL,
			line              TEXT NOT NULL,
			response          TEXT NOT NULL,
			angle             INTEGER,
			created_at        INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		);
		CREATE TABLE IF NOT EXISTS angle_presets (
			preset_id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name              TEXT NOT NULL UNIQUE,
			angle             INTEGER NOT NULL,
			is_system         INTEGER NOT NULL DEFAULT 0,
			created_at        INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at        INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		);
		INSERT OR IGNORE INTO angle_presets (name, angle, is_system) VALUES
			('home', 90, 1),
			('min', 0, 1),
			('max', 180, 1);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// Command is one handled command line, as logged by the bridge.
type Command struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Line      string `json:"line"`
	Response  string `json:"response"`
	Angle     *int   `json:"angle,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Command sources.
const (
	SourceSerial = "serial"
	SourceAPI    = "api"
	SourcePreset = "preset"
)

// RecordCommand inserts one handled command into the log. Angle is nil for
// rejected commands.
func (db *DB) RecordCommand(source, line, response string, angle *int) (Command, error) {
	cmd := Command{
		ID:       uuid.NewString(),
		Source:   source,
		Line:     line,
		Response: response,
		Angle:    angle,
	}

	var angleVal sql.NullInt64
	if angle != nil {
		angleVal = sql.NullInt64{Int64: int64(*angle), Valid: true}
	}

	err := db.QueryRow(`
		INSERT INTO commands (command_id, source, line, response, angle)
		VALUES (?, ?, ?, ?, ?)
		RETURNING created_at
	`, cmd.ID, cmd.Source, cmd.Line, cmd.Response, angleVal).Scan(&cmd.CreatedAt)
	if err != nil {
		return Command{}, fmt.Errorf("failed to record command: %w", err)
	}
	return cmd, nil
}

// RecentCommands returns the most recent commands, newest first.
func (db *DB) RecentCommands(limit int) ([]Command, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT command_id, source, line, response, angle, created_at
		FROM commands
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		var cmd Command
		var angle sql.NullInt64
		if err := rows.Scan(&cmd.ID, &cmd.Source, &cmd.Line, &cmd.Response, &angle, &cmd.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		if angle.Valid {
			a := int(angle.Int64)
			cmd.Angle = &a
		}
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commands: %w", err)
	}
	return commands, nil
}

// RecentAngles returns the angles of the most recently accepted commands,
// oldest first, for stats and charting.
func (db *DB) RecentAngles(limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := db.Query(`
		SELECT angle FROM (
			SELECT rowid, angle FROM commands
			WHERE angle IS NOT NULL
			ORDER BY rowid DESC
			LIMIT ?
		) ORDER BY rowid ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query angles: %w", err)
	}
	defer rows.Close()

	var angles []float64
	for rows.Next() {
		var a float64
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("failed to scan angle: %w", err)
		}
		angles = append(angles, a)
	}
	return angles, rows.Err()
}

// AttachAdminRoutes mounts the live SQL console and the backup endpoint on
// the debug mux.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://servolink.db", db.DB, &tailsql.DBOptions{
		Label: "Servolink DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			log.Printf("Failed to stream backup file: %v", err)
		}
	}))
}
