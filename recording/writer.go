// Package recording persists simulator access traces to SQLite so runs can
// be inspected after the fact. Traces are observability output only; nothing
// here is ever read back into simulator state.
package recording

import (
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/vmlab-project/vmlab/vm"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// A Writer batches access records and writes them to a SQLite database. One
// writer may serve several simulators at once; its own mutex serializes the
// buffers.
type Writer struct {
	*sql.DB

	mu        sync.Mutex
	dbPath    string
	batchSize int
	buffers   map[string][]bufferedRecord
	seqs      map[string]int
	pending   int
}

type bufferedRecord struct {
	seq int
	rec vm.AccessRecord
}

// NewWriter opens the SQLite database at path, creating it if needed. An
// empty path picks a fresh vmlab_trace_<id>.sqlite3 in the working
// directory. Buffered records are flushed when the process exits.
func NewWriter(path string) (*Writer, error) {
	if path == "" {
		path = fmt.Sprintf("vmlab_trace_%s.sqlite3", xid.New().String())
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace database %s: %w", path, err)
	}

	fmt.Fprintf(os.Stderr, "Recording access traces to %s\n", path)

	w := &Writer{
		DB:        db,
		dbPath:    path,
		batchSize: 1024,
		buffers:   make(map[string][]bufferedRecord),
		seqs:      make(map[string]int),
	}

	atexit.Register(func() { w.Flush() })

	return w, nil
}

// Path returns the database file location.
func (w *Writer) Path() string {
	return w.dbPath
}

// CreateTable creates an access table if it does not already exist.
func (w *Writer) CreateTable(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}

	createTableSQL := `CREATE TABLE IF NOT EXISTS ` + name + ` (
	seq INTEGER,
	vpn INTEGER,
	hit INTEGER,
	frame INTEGER,
	evicted_vpn INTEGER
);`

	if _, err := w.Exec(createTableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.buffers[name]; !ok {
		w.buffers[name] = nil
	}

	return nil
}

// Insert buffers one access record for the table. The batch is written once
// it grows past the batch size.
func (w *Writer) Insert(table string, rec vm.AccessRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, exists := w.buffers[table]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", table))
	}

	seq := w.seqs[table]
	w.seqs[table] = seq + 1
	w.buffers[table] = append(buf, bufferedRecord{seq: seq, rec: rec})

	w.pending++
	if w.pending >= w.batchSize {
		w.flush()
	}
}

// Flush writes every buffered record inside one transaction.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.flush()
}

// flush does the writing. Callers hold the mutex.
func (w *Writer) flush() {
	if w.pending == 0 {
		return
	}

	w.mustExecute("BEGIN TRANSACTION")
	defer w.mustExecute("COMMIT TRANSACTION")

	for table, records := range w.buffers {
		if len(records) == 0 {
			continue
		}

		stmt, err := w.Prepare(
			"INSERT INTO " + table + " VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			panic(err)
		}

		for _, b := range records {
			var evicted interface{}
			if b.rec.EvictedVPN != nil {
				evicted = int64(*b.rec.EvictedVPN)
			}

			_, err := stmt.Exec(
				b.seq, int64(b.rec.VPN), b.rec.Hit, b.rec.Frame, evicted)
			if err != nil {
				panic(err)
			}
		}

		w.buffers[table] = nil

		stmt.Close()
	}

	w.pending = 0
}

// Sink returns a TraceSink that records into the named table, for attaching
// to a simulator at build time.
func (w *Writer) Sink(table string) vm.TraceSink {
	return &tableSink{writer: w, table: table}
}

type tableSink struct {
	writer *Writer
	table  string
}

func (s *tableSink) Record(rec vm.AccessRecord) {
	s.writer.Insert(s.table, rec)
}

func (w *Writer) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		fmt.Printf("Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
