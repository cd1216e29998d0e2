package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/example/spake/internal/fsutil"
	"github.com/example/spake/internal/ngram"
)

const schemaSQL = `
CREATE TABLE meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE initial (
    token TEXT PRIMARY KEY
);

CREATE TABLE bigram (
    x TEXT NOT NULL,
    y TEXT NOT NULL,
    p REAL NOT NULL,
    PRIMARY KEY (x, y)
);

CREATE TABLE trigram (
    x TEXT NOT NULL,
    y TEXT NOT NULL,
    z TEXT NOT NULL,
    p REAL NOT NULL,
    PRIMARY KEY (x, y, z)
);
`

// SaveSQLite writes m as a SQLite database. The database is built in a
// temporary file in one transaction and renamed over path on success.
func SaveSQLite(path string, m *ngram.Model) error {
	if m == nil {
		return errors.New("store: nil model")
	}

	tmp, err := fsutil.CreateTemp(path)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", path, err)
	}

	if err := writeSQLite(tmp, m); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("store: save %s: %w", path, err)
	}

	if err := fsutil.Replace(tmp, path); err != nil {
		return fmt.Errorf("store: save %s: %w", path, err)
	}

	return nil
}

func writeSQLite(path string, m *ngram.Model) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	top, err := json.Marshal(m.Stats.TopTokens)
	if err != nil {
		return fmt.Errorf("encode top tokens: %w", err)
	}

	meta := [][2]string{
		{"version", strconv.Itoa(version)},
		{"sentences", strconv.Itoa(m.Stats.Sentences)},
		{"tokens", strconv.Itoa(m.Stats.Tokens)},
		{"vocab", strconv.Itoa(m.Stats.Vocab)},
		{"top_tokens", string(top)},
	}
	for _, kv := range meta {
		if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES(?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("insert meta %s: %w", kv[0], err)
		}
	}

	for _, tok := range sortedUnique(m.Initial) {
		if _, err := tx.Exec(`INSERT INTO initial(token) VALUES(?)`, tok); err != nil {
			return fmt.Errorf("insert initial token: %w", err)
		}
	}

	bi, err := tx.Prepare(`INSERT INTO bigram(x, y, p) VALUES(?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare bigram insert: %w", err)
	}
	defer bi.Close()

	for _, x := range sortedKeys(m.Bigram) {
		d := m.Bigram[x]
		for _, y := range d.Keys() {
			if _, err := bi.Exec(x, y, d[y]); err != nil {
				return fmt.Errorf("insert bigram: %w", err)
			}
		}
	}

	tri, err := tx.Prepare(`INSERT INTO trigram(x, y, z, p) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trigram insert: %w", err)
	}
	defer tri.Close()

	for _, x := range sortedKeys(m.Trigram) {
		row := m.Trigram[x]
		for _, y := range sortedKeys(row) {
			d := row[y]
			for _, z := range d.Keys() {
				if _, err := tri.Exec(x, y, z, d[z]); err != nil {
					return fmt.Errorf("insert trigram: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// LoadSQLite reads a model written by SaveSQLite. A missing file yields
// ErrNoModel; a database that cannot be queried or holds invalid tables
// yields ErrCorruptModel.
func LoadSQLite(path string) (*ngram.Model, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoModel, path)
		}
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	defer db.Close()

	m, err := readSQLite(db)
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w: %w", path, ErrCorruptModel, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("store: load %s: %w: %w", path, ErrCorruptModel, err)
	}

	return m, nil
}

func readSQLite(db *sql.DB) (*ngram.Model, error) {
	meta := make(map[string]string)

	rows, err := db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	if meta["version"] != strconv.Itoa(version) {
		return nil, fmt.Errorf("unsupported version %q", meta["version"])
	}

	m := ngram.New()

	for _, f := range []struct {
		key string
		dst *int
	}{
		{"sentences", &m.Stats.Sentences},
		{"tokens", &m.Stats.Tokens},
		{"vocab", &m.Stats.Vocab},
	} {
		n, err := strconv.Atoi(meta[f.key])
		if err != nil {
			return nil, fmt.Errorf("meta %s: %w", f.key, err)
		}
		*f.dst = n
	}

	if raw := meta["top_tokens"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Stats.TopTokens); err != nil {
			return nil, fmt.Errorf("meta top_tokens: %w", err)
		}
	}

	rows, err = db.Query(`SELECT token FROM initial ORDER BY token`)
	if err != nil {
		return nil, fmt.Errorf("query initial: %w", err)
	}
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan initial: %w", err)
		}
		m.Initial = append(m.Initial, tok)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = db.Query(`SELECT x, y, p FROM bigram`)
	if err != nil {
		return nil, fmt.Errorf("query bigram: %w", err)
	}
	for rows.Next() {
		var x, y string
		var p float64
		if err := rows.Scan(&x, &y, &p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan bigram: %w", err)
		}
		d, ok := m.Bigram[x]
		if !ok {
			d = make(ngram.Dist)
			m.Bigram[x] = d
		}
		d[y] = p
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = db.Query(`SELECT x, y, z, p FROM trigram`)
	if err != nil {
		return nil, fmt.Errorf("query trigram: %w", err)
	}
	for rows.Next() {
		var x, y, z string
		var p float64
		if err := rows.Scan(&x, &y, &z, &p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan trigram: %w", err)
		}
		row, ok := m.Trigram[x]
		if !ok {
			row = make(map[string]ngram.Dist)
			m.Trigram[x] = row
		}
		d, ok := row[y]
		if !ok {
			d = make(ngram.Dist)
			row[y] = d
		}
		d[z] = p
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return m, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate rows: %w", err)
	}

	return rows.Close()
}
