package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/oauth2"
)

const schemaName = "prayersync"

// migrations[i] moves the schema from version i to i+1.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		account_name TEXT PRIMARY KEY,
		token TEXT
	);
	CREATE TABLE IF NOT EXISTS published_events (
		event_id TEXT,
		calendar_id TEXT,
		account_name TEXT,
		provider_type TEXT,
		event_key TEXT,
		summary TEXT,
		event_date TEXT,
		start_time TEXT,
		end_time TEXT,
		published_at TEXT,
		PRIMARY KEY (calendar_id, event_id)
	);`,
	`CREATE INDEX IF NOT EXISTS published_events_date ON published_events (event_date);`,
}

type Store struct {
	db *sqlx.DB
}

// PublishedEvent is one event we created in a calendar.
type PublishedEvent struct {
	EventID      string `db:"event_id"`
	CalendarID   string `db:"calendar_id"`
	AccountName  string `db:"account_name"`
	ProviderType string `db:"provider_type"`
	EventKey     string `db:"event_key"`
	Summary      string `db:"summary"`
	EventDate    string `db:"event_date"`
	StartTime    string `db:"start_time"`
	EndTime      string `db:"end_time"`
	PublishedAt  string `db:"published_at"`
}

type PublishedCount struct {
	AccountName string `db:"account_name"`
	CalendarID  string `db:"calendar_id"`
	Month       string `db:"month"`
	NumEvents   int    `db:"num_events"`
}

// openStore opens the database next to the config file, or in the working
// directory when the config came from there, and brings the schema up to date.
func openStore(filename string) (*Store, error) {
	path := filename
	if configDir != "" && !filepath.IsAbs(filename) {
		path = filepath.Join(configDir, filename)
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.dbInit(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) dbInit() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS db_version (
		name TEXT PRIMARY KEY,
		version INTEGER
	)`)
	if err != nil {
		return fmt.Errorf("error creating db_version table: %w", err)
	}

	var dbVersion int
	err = s.db.Get(&dbVersion, "SELECT version FROM db_version WHERE name = ?", schemaName)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec("INSERT INTO db_version (name, version) VALUES (?, 0)", schemaName); err != nil {
			return fmt.Errorf("error initializing db_version table: %w", err)
		}
		dbVersion = 0
	} else if err != nil {
		return fmt.Errorf("error reading db_version: %w", err)
	}

	for dbVersion < len(migrations) {
		tx, err := s.db.Beginx()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[dbVersion]); err != nil {
			tx.Rollback()
			return fmt.Errorf("error applying migration %d: %w", dbVersion+1, err)
		}
		dbVersion++
		if _, err := tx.Exec("UPDATE db_version SET version = ? WHERE name = ?", dbVersion, schemaName); err != nil {
			tx.Rollback()
			return fmt.Errorf("error updating db_version table: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// LoadToken returns sql.ErrNoRows when the account has never been authorized.
func (s *Store) LoadToken(accountName string) (*oauth2.Token, error) {
	var tokenJSON string
	if err := s.db.Get(&tokenJSON, "SELECT token FROM tokens WHERE account_name = ?", accountName); err != nil {
		return nil, err
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(tokenJSON), &token); err != nil {
		return nil, fmt.Errorf("error unmarshaling token: %w", err)
	}
	return &token, nil
}

func (s *Store) SaveToken(accountName string, token *oauth2.Token) error {
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("INSERT OR REPLACE INTO tokens (account_name, token) VALUES (?, ?)", accountName, string(tokenJSON))
	return err
}

func (s *Store) RecordPublished(p PublishedEvent) error {
	if p.PublishedAt == "" {
		p.PublishedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.NamedExec(`INSERT OR REPLACE INTO published_events
		(event_id, calendar_id, account_name, provider_type, event_key, summary, event_date, start_time, end_time, published_at)
		VALUES (:event_id, :calendar_id, :account_name, :provider_type, :event_key, :summary, :event_date, :start_time, :end_time, :published_at)`, p)
	return err
}

// Published lists published events for a calendar, optionally limited to event
// dates in [from, to].
func (s *Store) Published(calendarID string, from, to time.Time, limited bool) ([]PublishedEvent, error) {
	var events []PublishedEvent
	var err error
	if limited {
		err = s.db.Select(&events, `SELECT * FROM published_events
			WHERE calendar_id = ? AND event_date >= ? AND event_date <= ?
			ORDER BY start_time`,
			calendarID, from.Format(storageDateLayout), to.Format(storageDateLayout))
	} else {
		err = s.db.Select(&events, `SELECT * FROM published_events
			WHERE calendar_id = ? ORDER BY start_time`, calendarID)
	}
	return events, err
}

func (s *Store) DeletePublished(calendarID, eventID string) error {
	_, err := s.db.Exec("DELETE FROM published_events WHERE calendar_id = ? AND event_id = ?", calendarID, eventID)
	return err
}

func (s *Store) PublishedSummary() ([]PublishedCount, error) {
	var counts []PublishedCount
	err := s.db.Select(&counts, `SELECT account_name, calendar_id, substr(event_date, 1, 7) AS month, count(1) AS num_events
		FROM published_events GROUP BY 1, 2, 3 ORDER BY 1, 2, 3`)
	return counts, err
}
