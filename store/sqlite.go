package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nathoo/qicore/engine/save"
	"github.com/nathoo/qicore/types"
)

// SQLite implements Repository on a SQLite database. Nested fields (body,
// inventory, techniques) are stored as versioned JSON documents.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(dbPath string) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS characters (
		id                   TEXT PRIMARY KEY,
		name                 TEXT NOT NULL,
		level                INTEGER NOT NULL,
		sub_level            INTEGER NOT NULL,
		core_capacity        REAL NOT NULL,
		current_qi           REAL NOT NULL,
		accumulated_qi       REAL NOT NULL,
		core_filled          INTEGER NOT NULL DEFAULT 0,
		fatigue              REAL NOT NULL,
		mental_fatigue       REAL NOT NULL,
		health               REAL NOT NULL,
		strength             REAL NOT NULL,
		agility              REAL NOT NULL,
		intelligence         REAL NOT NULL,
		conductivity         REAL NOT NULL,
		qi_understanding     REAL NOT NULL,
		qi_understanding_cap REAL NOT NULL,
		location_id          TEXT NOT NULL,
		body                 TEXT NOT NULL,
		inventory            TEXT NOT NULL,
		techniques           TEXT NOT NULL,
		updated_at           TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS locations (
		id                   TEXT PRIMARY KEY,
		name                 TEXT NOT NULL,
		description          TEXT NOT NULL DEFAULT '',
		terrain              TEXT NOT NULL,
		qi_density           REAL NOT NULL,
		distance_from_center REAL NOT NULL,
		x                    REAL,
		y                    REAL
	);

	CREATE TABLE IF NOT EXISTS session_times (
		session_id    TEXT PRIMARY KEY,
		year          INTEGER NOT NULL,
		month         INTEGER NOT NULL,
		day           INTEGER NOT NULL,
		hour          INTEGER NOT NULL,
		minute        INTEGER NOT NULL,
		total_minutes INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateCharacter inserts or replaces a character record.
func (s *SQLite) CreateCharacter(ctx context.Context, rec Record) error {
	if rec.Character.ID == "" {
		return fmt.Errorf("create character: id is required")
	}
	return s.writeCharacter(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite) writeCharacter(ctx context.Context, db execer, rec Record) error {
	ch := rec.Character
	bodyJSON, err := save.EncodeBody(ch.Body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	invJSON, err := save.EncodeInventory(rec.Inventory)
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	techJSON, err := save.EncodeTechniques(rec.Techniques)
	if err != nil {
		return fmt.Errorf("encode techniques: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO characters (id, name, level, sub_level, core_capacity, current_qi,
			accumulated_qi, core_filled, fatigue, mental_fatigue, health, strength, agility,
			intelligence, conductivity, qi_understanding, qi_understanding_cap, location_id,
			body, inventory, techniques, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.Name, ch.CultivationLevel, ch.CultivationSubLevel, ch.CoreCapacity, ch.CurrentQi,
		ch.AccumulatedQi, ch.CoreFilled, ch.Fatigue, ch.MentalFatigue, ch.Health, ch.Strength, ch.Agility,
		ch.Intelligence, ch.Conductivity, ch.QiUnderstanding, ch.QiUnderstandingCap, ch.LocationID,
		string(bodyJSON), string(invJSON), string(techJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write character: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) readCharacter(ctx context.Context, db queryRower, id string) (Record, error) {
	var (
		rec                     Record
		ch                      = &rec.Character
		bodyJSON, inv, techJSON string
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, name, level, sub_level, core_capacity, current_qi, accumulated_qi, core_filled,
			fatigue, mental_fatigue, health, strength, agility, intelligence, conductivity,
			qi_understanding, qi_understanding_cap, location_id, body, inventory, techniques
		 FROM characters WHERE id = ?`, id).Scan(
		&ch.ID, &ch.Name, &ch.CultivationLevel, &ch.CultivationSubLevel, &ch.CoreCapacity, &ch.CurrentQi,
		&ch.AccumulatedQi, &ch.CoreFilled, &ch.Fatigue, &ch.MentalFatigue, &ch.Health, &ch.Strength,
		&ch.Agility, &ch.Intelligence, &ch.Conductivity, &ch.QiUnderstanding, &ch.QiUnderstandingCap,
		&ch.LocationID, &bodyJSON, &inv, &techJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read character: %w", err)
	}

	if ch.Body, err = save.DecodeBody([]byte(bodyJSON)); err != nil {
		return Record{}, fmt.Errorf("decode body: %w", err)
	}
	if rec.Inventory, err = save.DecodeInventory([]byte(inv)); err != nil {
		return Record{}, fmt.Errorf("decode inventory: %w", err)
	}
	if rec.Techniques, err = save.DecodeTechniques([]byte(techJSON)); err != nil {
		return Record{}, fmt.Errorf("decode techniques: %w", err)
	}
	return rec, nil
}

func (s *SQLite) LoadCharacter(ctx context.Context, id string) (Record, error) {
	return s.readCharacter(ctx, s.db, id)
}

// SaveCharacter applies the delta to the stored row inside one transaction.
func (s *SQLite) SaveCharacter(ctx context.Context, id string, d types.CharacterDelta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rec, err := s.readCharacter(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := s.writeCharacter(ctx, tx, applyDelta(rec, d)); err != nil {
		return err
	}
	return tx.Commit()
}

// ImportLocations inserts or replaces locations in one transaction.
func (s *SQLite) ImportLocations(ctx context.Context, locs []types.Location) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, l := range locs {
		var x, y *float64
		if l.Coordinates != nil {
			x, y = &l.Coordinates.X, &l.Coordinates.Y
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO locations (id, name, description, terrain, qi_density, distance_from_center, x, y)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.Name, l.Description, string(l.TerrainType), l.QiDensity, l.DistanceFromCenter, x, y)
		if err != nil {
			return fmt.Errorf("insert location %s: %w", l.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) LoadLocation(ctx context.Context, id string) (types.Location, error) {
	var (
		l       types.Location
		terrain string
		x, y    sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, terrain, qi_density, distance_from_center, x, y
		 FROM locations WHERE id = ?`, id).Scan(
		&l.ID, &l.Name, &l.Description, &terrain, &l.QiDensity, &l.DistanceFromCenter, &x, &y)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Location{}, fmt.Errorf("location %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Location{}, fmt.Errorf("read location: %w", err)
	}
	l.TerrainType = types.TerrainType(terrain)
	if x.Valid && y.Valid {
		l.Coordinates = &types.Coordinates{X: x.Float64, Y: y.Float64}
	}
	return l, nil
}

func (s *SQLite) LoadSessionTime(ctx context.Context, sessionID string) (types.WorldTime, bool, error) {
	var t types.WorldTime
	err := s.db.QueryRowContext(ctx,
		`SELECT year, month, day, hour, minute, total_minutes FROM session_times WHERE session_id = ?`,
		sessionID).Scan(&t.Year, &t.Month, &t.Day, &t.Hour, &t.Minute, &t.TotalMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return types.WorldTime{}, false, nil
	}
	if err != nil {
		return types.WorldTime{}, false, fmt.Errorf("read session time: %w", err)
	}
	return t, true, nil
}

func (s *SQLite) SaveSessionTime(ctx context.Context, sessionID string, t types.WorldTime) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_times (session_id, year, month, day, hour, minute, total_minutes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET year = excluded.year, month = excluded.month,
			day = excluded.day, hour = excluded.hour, minute = excluded.minute,
			total_minutes = excluded.total_minutes`,
		sessionID, t.Year, t.Month, t.Day, t.Hour, t.Minute, t.TotalMinutes)
	if err != nil {
		return fmt.Errorf("write session time: %w", err)
	}
	return nil
}

// CharacterIDs lists stored character ids in sorted order.
func (s *SQLite) CharacterIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM characters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
