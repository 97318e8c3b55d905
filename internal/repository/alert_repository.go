// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/mattn/go-sqlite3"
)

// ZoneDay is the level of one zone on one bulletin day
type ZoneDay struct {
	Date     string
	Today    entities.Criticality
	Risk     string
	Tomorrow entities.Criticality
}

// AlertRepository defines the persistence operations for the scraped history
type AlertRepository interface {
	SaveBulletin(b entities.Bulletin) error
	GetLatestBulletin() (*entities.Bulletin, error)
	GetZoneHistory(zone string, limit int) ([]ZoneDay, error)
	SaveSensorSnapshot(snap entities.SensorSnapshot, scrapedAt time.Time) error
	GetLatestReadings(category string) ([]entities.SensorReading, error)
	SaveReservoirs(records []entities.Reservoir) error
	GetLatestReservoirs() ([]entities.Reservoir, error)
	SaveAvalanche(b entities.AvalancheBulletin) error
	GetLatestAvalanche() (*entities.AvalancheBulletin, error)
	SaveRun(run entities.Run) error
	GetRecentRuns(limit int) ([]entities.Run, error)
	GetLastUpdateTime() (time.Time, error)
	Close() error
}

// SQLiteAlertRepository implements AlertRepository using SQLite
type SQLiteAlertRepository struct {
	db     *sql.DB
	DBPath string
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS bulletins (
	day TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	url TEXT,
	validity_start TEXT,
	validity_end TEXT,
	last_update TEXT,
	max_today TEXT,
	saved_at DATETIME
);
CREATE TABLE IF NOT EXISTS bulletin_zones (
	day TEXT NOT NULL,
	zone TEXT NOT NULL,
	today TEXT,
	today_risk TEXT,
	tomorrow TEXT,
	tomorrow_risk TEXT,
	UNIQUE(day, zone)
);
CREATE TABLE IF NOT EXISTS sensor_readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL,
	station_id TEXT,
	station_name TEXT NOT NULL,
	observed TEXT NOT NULL,
	value REAL,
	status TEXT,
	lat REAL,
	lon REAL,
	scraped_at DATETIME,
	UNIQUE(category, station_name, observed)
);
CREATE INDEX IF NOT EXISTS idx_sensor_category ON sensor_readings(category, scraped_at);
CREATE TABLE IF NOT EXISTS reservoirs (
	dam_name TEXT NOT NULL,
	date TEXT NOT NULL,
	day TEXT NOT NULL,
	max_capacity REAL,
	current_volume REAL,
	fill_percentage REAL,
	rainfall_mm REAL,
	UNIQUE(dam_name, date)
);
CREATE TABLE IF NOT EXISTS avalanche (
	sector TEXT NOT NULL,
	date TEXT NOT NULL,
	payload TEXT NOT NULL,
	saved_at DATETIME,
	UNIQUE(sector, date)
);
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	job TEXT NOT NULL,
	outcome TEXT NOT NULL,
	error TEXT,
	started_at DATETIME,
	finished_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);`

// NewSQLiteAlertRepository creates and initializes a new SQLite repository
func NewSQLiteAlertRepository(dbPath string) (*SQLiteAlertRepository, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "allerta.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("opening database", "path", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteAlertRepository{
		db:     db,
		DBPath: dbPath,
	}, nil
}

// Close closes the database connection
func (r *SQLiteAlertRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// sortableDay turns DD/MM/YYYY into YYYY-MM-DD so that days order as text
func sortableDay(date string) string {
	t, err := time.Parse(entities.BulletinDateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("2006-01-02")
}

// SaveBulletin stores a bulletin and its zones. Saving the same bulletin
// date twice updates the stored rows.
func (r *SQLiteAlertRepository) SaveBulletin(b entities.Bulletin) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	day := sortableDay(b.Date)
	_, err = tx.Exec(`
		INSERT INTO bulletins(day, date, url, validity_start, validity_end, last_update, max_today, saved_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
		url=excluded.url,
		validity_start=excluded.validity_start,
		validity_end=excluded.validity_end,
		last_update=excluded.last_update,
		max_today=excluded.max_today,
		saved_at=excluded.saved_at`,
		day, b.Date, b.URL, b.ValidityStart, b.ValidityEnd, b.LastUpdate, string(b.MaxToday()), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save bulletin %s: %w", b.Date, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO bulletin_zones(day, zone, today, today_risk, tomorrow, tomorrow_risk)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(day, zone) DO UPDATE SET
		today=excluded.today,
		today_risk=excluded.today_risk,
		tomorrow=excluded.tomorrow,
		tomorrow_risk=excluded.tomorrow_risk`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, name := range b.ZoneNames() {
		z := b.Zones[name]
		if _, err := stmt.Exec(day, name, string(z.Today), z.TodayRisk, string(z.Tomorrow), z.TomorrowRisk); err != nil {
			return fmt.Errorf("failed to save zone %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	slog.Debug("bulletin saved", "date", b.Date, "zones", len(b.Zones))
	return nil
}

// GetLatestBulletin returns the most recent bulletin, nil when none is stored
func (r *SQLiteAlertRepository) GetLatestBulletin() (*entities.Bulletin, error) {
	var b entities.Bulletin
	var day string
	err := r.db.QueryRow(`
		SELECT day, date, url, validity_start, validity_end, last_update
		FROM bulletins ORDER BY day DESC LIMIT 1`).
		Scan(&day, &b.Date, &b.URL, &b.ValidityStart, &b.ValidityEnd, &b.LastUpdate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest bulletin: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT zone, today, today_risk, tomorrow, tomorrow_risk
		FROM bulletin_zones WHERE day = ? ORDER BY zone`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones for %s: %w", b.Date, err)
	}
	defer rows.Close()

	b.Zones = map[string]entities.ZoneRisk{}
	for rows.Next() {
		var name string
		var z entities.ZoneRisk
		if err := rows.Scan(&name, &z.Today, &z.TodayRisk, &z.Tomorrow, &z.TomorrowRisk); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		b.Zones[name] = z
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return &b, nil
}

// GetZoneHistory returns the last limit days of one zone, newest first
func (r *SQLiteAlertRepository) GetZoneHistory(zone string, limit int) ([]ZoneDay, error) {
	rows, err := r.db.Query(`
		SELECT b.date, z.today, z.today_risk, z.tomorrow
		FROM bulletin_zones z JOIN bulletins b ON b.day = z.day
		WHERE z.zone = ?
		ORDER BY z.day DESC LIMIT ?`, zone, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", zone, err)
	}
	defer rows.Close()

	var result []ZoneDay
	for rows.Next() {
		var d ZoneDay
		if err := rows.Scan(&d.Date, &d.Today, &d.Risk, &d.Tomorrow); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// SaveSensorSnapshot stores every reading of a snapshot. A reading already
// stored for the same station and observation time is updated in place.
func (r *SQLiteAlertRepository) SaveSensorSnapshot(snap entities.SensorSnapshot, scrapedAt time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO sensor_readings(category, station_id, station_name, observed, value, status, lat, lon, scraped_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, station_name, observed) DO UPDATE SET
		station_id=excluded.station_id,
		value=excluded.value,
		status=excluded.status,
		lat=excluded.lat,
		lon=excluded.lon,
		scraped_at=excluded.scraped_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	count := 0
	for category, group := range snap.Sensors {
		for _, rd := range group.Readings {
			if _, err := stmt.Exec(category, rd.ID, rd.Name, rd.Time, rd.Value, rd.Status, rd.Lat, rd.Lon, scrapedAt.UTC()); err != nil {
				return fmt.Errorf("failed to insert reading for %s: %w", rd.Name, err)
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	slog.Debug("sensor readings saved", "count", count)
	return nil
}

// GetLatestReadings returns the readings of the most recent scrape of a category
func (r *SQLiteAlertRepository) GetLatestReadings(category string) ([]entities.SensorReading, error) {
	rows, err := r.db.Query(`
		SELECT station_id, station_name, observed, value, status, lat, lon
		FROM sensor_readings
		WHERE category = ? AND scraped_at = (
			SELECT MAX(scraped_at) FROM sensor_readings WHERE category = ?
		)
		ORDER BY value DESC, station_name`, category, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings for %s: %w", category, err)
	}
	defer rows.Close()

	var result []entities.SensorReading
	for rows.Next() {
		var rd entities.SensorReading
		var id sql.NullString
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&id, &rd.Name, &rd.Time, &rd.Value, &rd.Status, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rd.ID = id.String
		if lat.Valid && lon.Valid {
			rd.Lat, rd.Lon = &lat.Float64, &lon.Float64
		}
		result = append(result, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// SaveReservoirs upserts reservoir records keyed by dam and bulletin date
func (r *SQLiteAlertRepository) SaveReservoirs(records []entities.Reservoir) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO reservoirs(dam_name, date, day, max_capacity, current_volume, fill_percentage, rainfall_mm)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dam_name, date) DO UPDATE SET
		max_capacity=excluded.max_capacity,
		current_volume=excluded.current_volume,
		fill_percentage=excluded.fill_percentage,
		rainfall_mm=excluded.rainfall_mm`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rs := range records {
		if _, err := stmt.Exec(rs.DamName, rs.Date, sortableDay(rs.Date), rs.MaxCapacity, rs.CurrentVolume, rs.FillPercentage, rs.RainfallMM); err != nil {
			return fmt.Errorf("failed to insert reservoir %s: %w", rs.DamName, err)
		}
	}
	return tx.Commit()
}

// GetLatestReservoirs returns the records of the most recent bulletin date
func (r *SQLiteAlertRepository) GetLatestReservoirs() ([]entities.Reservoir, error) {
	rows, err := r.db.Query(`
		SELECT dam_name, date, max_capacity, current_volume, fill_percentage, rainfall_mm
		FROM reservoirs
		WHERE day = (SELECT MAX(day) FROM reservoirs)
		ORDER BY dam_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservoirs: %w", err)
	}
	defer rows.Close()

	var result []entities.Reservoir
	for rows.Next() {
		var rs entities.Reservoir
		if err := rows.Scan(&rs.DamName, &rs.Date, &rs.MaxCapacity, &rs.CurrentVolume, &rs.FillPercentage, &rs.RainfallMM); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// SaveAvalanche stores the avalanche bulletin as JSON keyed by sector and date
func (r *SQLiteAlertRepository) SaveAvalanche(b entities.AvalancheBulletin) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode avalanche bulletin: %w", err)
	}
	_, err = r.db.Exec(`
		INSERT INTO avalanche(sector, date, payload, saved_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(sector, date) DO UPDATE SET
		payload=excluded.payload,
		saved_at=excluded.saved_at`,
		b.Sector, b.Date, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save avalanche bulletin: %w", err)
	}
	return nil
}

// GetLatestAvalanche returns the most recently saved avalanche bulletin, nil when none
func (r *SQLiteAlertRepository) GetLatestAvalanche() (*entities.AvalancheBulletin, error) {
	var payload string
	err := r.db.QueryRow(`SELECT payload FROM avalanche ORDER BY saved_at DESC LIMIT 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query avalanche bulletin: %w", err)
	}
	var b entities.AvalancheBulletin
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, fmt.Errorf("failed to decode avalanche bulletin: %w", err)
	}
	return &b, nil
}

// SaveRun records one job execution
func (r *SQLiteAlertRepository) SaveRun(run entities.Run) error {
	_, err := r.db.Exec(`
		INSERT INTO runs(id, job, outcome, error, started_at, finished_at) VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		outcome=excluded.outcome,
		error=excluded.error,
		finished_at=excluded.finished_at`,
		run.ID, run.Job, run.Outcome, run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRecentRuns returns the last limit runs, newest first
func (r *SQLiteAlertRepository) GetRecentRuns(limit int) ([]entities.Run, error) {
	rows, err := r.db.Query(`
		SELECT id, job, outcome, error, started_at, finished_at
		FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var result []entities.Run
	for rows.Next() {
		var run entities.Run
		var errText sql.NullString
		if err := rows.Scan(&run.ID, &run.Job, &run.Outcome, &errText, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		run.Error = errText.String
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// GetLastUpdateTime returns the end time of the most recent successful run
func (r *SQLiteAlertRepository) GetLastUpdateTime() (time.Time, error) {
	var timestampStr sql.NullString
	err := r.db.QueryRow("SELECT MAX(finished_at) FROM runs WHERE outcome != ?", entities.OutcomeFailed).Scan(&timestampStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get last update time: %w", err)
	}
	if !timestampStr.Valid || timestampStr.String == "" {
		return time.Time{}, nil
	}

	// MAX() drops the column type, so the driver hands back text
	for _, layout := range append([]string{time.RFC3339Nano}, sqlite3.SQLiteTimestampFormats...) {
		if t, err := time.Parse(layout, timestampStr.String); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s'", timestampStr.String)
}
