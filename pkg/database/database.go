package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/YoungRaeKimm/CS492-project/pkg/config"
	"github.com/YoungRaeKimm/CS492-project/pkg/launcher"

	_ "github.com/lib/pq"
)

var DebugLog func(string, ...interface{})

type DB struct {
	conn    *sql.DB
	enabled bool
}

type RunRecord struct {
	ID         int64
	Dataset    string
	ILType     string
	Split      int
	Device     int
	Alpha      float64
	Beta       float64
	Gamma      float64
	MemorySize int
	RT         float64
	NumHead    int
	HiddenDim  int
	Args       string
	Status     string
	ExitCode   sql.NullInt64
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

const DBName = "lvtrun_track"

func New(cfg *config.Database) (*DB, error) {
	db := &DB{
		enabled: cfg.Enabled,
	}

	if !cfg.Enabled {
		if DebugLog != nil {
			DebugLog("run tracking database disabled")
		}
		return db, nil
	}

	postgresConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password)

	postgresConn, err := sql.Open("postgres", postgresConnStr)
	if err != nil {
		return db, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer postgresConn.Close()

	if err := postgresConn.Ping(); err != nil {
		return db, fmt.Errorf("failed to ping postgres: %w", err)
	}

	var exists bool
	err = postgresConn.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", DBName).Scan(&exists)
	if err != nil {
		return db, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		_, err = postgresConn.Exec(fmt.Sprintf("CREATE DATABASE %s", DBName))
		if err != nil {
			return db, fmt.Errorf("failed to create database: %w", err)
		}
		fmt.Printf("[INF] Database '%s' created successfully.\n", DBName)
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, DBName)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return db, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return db, fmt.Errorf("failed to ping database: %w", err)
	}

	db.conn = conn
	fmt.Println("[INF] Run tracking database active.")

	if err := db.initSchema(); err != nil {
		return db, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	if !db.enabled || db.conn == nil {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id SERIAL PRIMARY KEY,
		dataset VARCHAR(64) NOT NULL,
		iltype VARCHAR(16) NOT NULL,
		split INTEGER NOT NULL,
		device INTEGER NOT NULL,
		alpha DOUBLE PRECISION NOT NULL,
		beta DOUBLE PRECISION NOT NULL,
		gamma DOUBLE PRECISION NOT NULL,
		memory_size INTEGER NOT NULL,
		rt DOUBLE PRECISION NOT NULL,
		num_head INTEGER NOT NULL,
		hidden_dim INTEGER NOT NULL,
		args TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'RUNNING',
		exit_code INTEGER,
		started_at TIMESTAMP NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := db.conn.Exec(schema)
	return err
}

func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) IsEnabled() bool {
	return db.enabled && db.conn != nil
}

// RecordRun inserts a RUNNING row for a freshly launched experiment and
// returns its id.
func (db *DB) RecordRun(cfg launcher.RunConfiguration) (int64, error) {
	if !db.IsEnabled() {
		return 0, nil
	}

	if DebugLog != nil {
		DebugLog("recording run for dataset %s (device %d)", cfg.Dataset, cfg.Device)
	}

	var id int64
	err := db.conn.QueryRow(`
		INSERT INTO runs (dataset, iltype, split, device, alpha, beta, gamma,
		                  memory_size, rt, num_head, hidden_dim, args, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'RUNNING', NOW())
		RETURNING id
	`, cfg.Dataset, cfg.ILType, cfg.Split, cfg.Device, cfg.Alpha, cfg.Beta, cfg.Gamma,
		cfg.MemorySize, cfg.RT, cfg.NumHead, cfg.HiddenDim, strings.Join(cfg.Args(), " ")).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}

	return id, nil
}

// CompleteRun stores the trainer's exit status and flips the row to
// COMPLETED or FAILED.
func (db *DB) CompleteRun(id int64, exitCode int) error {
	if !db.IsEnabled() || id == 0 {
		return nil
	}

	status := "COMPLETED"
	if exitCode != 0 {
		status = "FAILED"
	}

	if DebugLog != nil {
		DebugLog("marking run %d as %s (exit code %d)", id, status, exitCode)
	}

	_, err := db.conn.Exec(`
		UPDATE runs
		SET status = $1, exit_code = $2, finished_at = NOW()
		WHERE id = $3
	`, status, exitCode, id)
	return err
}

func (db *DB) QueryRuns(dataset string, status string) ([]RunRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("database is not enabled")
	}

	query := `
		SELECT id, dataset, iltype, split, device, alpha, beta, gamma,
		       memory_size, rt, num_head, hidden_dim, args, status, exit_code,
		       started_at, finished_at
		FROM runs
		WHERE dataset = $1
	`
	args := []interface{}{dataset}

	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}

	query += " ORDER BY started_at DESC"

	return db.scanRuns(query, args...)
}

func (db *DB) QueryAllRuns(status string) ([]RunRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("database is not enabled")
	}

	query := `
		SELECT id, dataset, iltype, split, device, alpha, beta, gamma,
		       memory_size, rt, num_head, hidden_dim, args, status, exit_code,
		       started_at, finished_at
		FROM runs
	`
	var args []interface{}

	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}

	query += " ORDER BY started_at DESC"

	return db.scanRuns(query, args...)
}

func (db *DB) scanRuns(query string, args ...interface{}) ([]RunRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Dataset, &r.ILType, &r.Split, &r.Device,
			&r.Alpha, &r.Beta, &r.Gamma, &r.MemorySize, &r.RT, &r.NumHead,
			&r.HiddenDim, &r.Args, &r.Status, &r.ExitCode, &r.StartedAt,
			&r.FinishedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
