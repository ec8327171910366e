// Package cookiestore persists request cookies between CLI runs in a SQLite
// file, keyed by host and cookie name.
package cookiestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/httphelper/packages/http"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS cookies (
	host       TEXT NOT NULL,
	name       TEXT NOT NULL,
	value      TEXT NOT NULL,
	attrs      TEXT NOT NULL DEFAULT '{}',
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (host, name)
)`

// attrs is the JSON form of everything a cookie carries besides name and value.
type attrs struct {
	Domain   string            `json:"domain,omitempty"`
	Path     string            `json:"path,omitempty"`
	Expires  string            `json:"expires,omitempty"`
	MaxAge   string            `json:"maxAge,omitempty"`
	SameSite string            `json:"sameSite,omitempty"`
	Secure   bool              `json:"secure,omitempty"`
	HTTPOnly bool              `json:"httpOnly,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Store is a cookie jar backed by a SQLite database.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
	now          func() time.Time
}

// Open opens or creates the jar at path. Both plain paths and
// "sqlite:"/"sqlite://" prefixed ones are accepted.
func Open(path string) (*Store, error) {
	dsn := strings.TrimSpace(path)
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite:")
	if dsn == "" {
		return nil, fmt.Errorf("cookie jar path required")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie jar: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise cookie jar: %w", err)
	}

	return &Store{
		db:           db,
		queryTimeout: 30 * time.Second,
		now:          time.Now,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load returns the cookies stored for host ordered by name.
func (s *Store) Load(host string) ([]*http.Cookie, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value, attrs FROM cookies WHERE host = ? ORDER BY name`, host)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var cookies []*http.Cookie
	for rows.Next() {
		var name, value, raw string
		if err := rows.Scan(&name, &value, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var a attrs
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("cookie %s: corrupt attributes: %w", name, err)
		}

		cookies = append(cookies, &http.Cookie{
			Name:     name,
			Value:    value,
			Domain:   a.Domain,
			Path:     a.Path,
			Expires:  a.Expires,
			MaxAge:   a.MaxAge,
			SameSite: a.SameSite,
			Secure:   a.Secure,
			HTTPOnly: a.HTTPOnly,
			Extra:    a.Extra,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return cookies, nil
}

// Save upserts cookies for host in one transaction. Cookies with an empty
// name are skipped.
func (s *Store) Save(host string, cookies []*http.Cookie) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cookies (host, name, value, attrs, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(host, name) DO UPDATE SET
			value = excluded.value,
			attrs = excluded.attrs,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	updated := s.now().Unix()
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		raw, err := json.Marshal(attrs{
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			MaxAge:   c.MaxAge,
			SameSite: c.SameSite,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			Extra:    c.Extra,
		})
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, host, c.Name, c.Value, string(raw), updated); err != nil {
			return fmt.Errorf("failed to save cookie %s: %w", c.Name, err)
		}
	}

	return tx.Commit()
}

// Delete removes every cookie of host and reports how many were removed.
func (s *Store) Delete(host string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE host = ?`, host)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return res.RowsAffected()
}

// Hosts lists the hosts that have cookies stored.
func (s *Store) Hosts() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT host FROM cookies ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}
