package recording

import (
	"database/sql"
	"fmt"
)

// A Row is one recorded access read back from a trace database.
type Row struct {
	Seq        int
	VPN        uint64
	Hit        bool
	Frame      int
	EvictedVPN *uint64
}

// A Reader pages rows back out of a trace database.
type Reader struct {
	*sql.DB

	dbPath string
}

// NewReader opens an existing trace database.
func NewReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace database %s: %w", path, err)
	}

	return &Reader{DB: db, dbPath: path}, nil
}

// ListTables returns the names of the access tables in the database.
func (r *Reader) ListTables() ([]string, error) {
	rows, err := r.Query(
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		tables = append(tables, name)
	}

	return tables, rows.Err()
}

// Accesses reads rows from the table in recording order. limit <= 0 returns
// everything; offset skips rows for pagination.
func (r *Reader) Accesses(table string, limit, offset int) ([]Row, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	query := fmt.Sprintf("SELECT seq, vpn, hit, frame, evicted_vpn FROM %s"+
		" ORDER BY seq", table)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", offset)
		}
	}

	rows, err := r.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row     Row
			vpn     int64
			evicted sql.NullInt64
		)

		if err := rows.Scan(
			&row.Seq, &vpn, &row.Hit, &row.Frame, &evicted); err != nil {
			return nil, err
		}

		row.VPN = uint64(vpn)
		if evicted.Valid {
			v := uint64(evicted.Int64)
			row.EvictedVPN = &v
		}

		out = append(out, row)
	}

	return out, rows.Err()
}
