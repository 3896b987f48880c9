// Package replaylog keeps replay logs in SQLite databases, so that a recording
// survives the process and can be replayed or inspected later.
package replaylog

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/structs"
	"github.com/pion/logging"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/logs"
	"github.com/sarchlab/emucore/statechange"
)

// FormatVersion is stored in every database and checked when loading.
const FormatVersion = 1

// ErrFileExists is returned when the database file is already there.
var ErrFileExists = errors.New("replaylog: file already exists")

// recordRow is one row of the records table. The sql tag holds the column
// type.
type recordRow struct {
	Seq     int64  `structs:"seq" sql:"INTEGER PRIMARY KEY"`
	Time    int64  `structs:"time" sql:"INTEGER NOT NULL"`
	Kind    string `structs:"kind" sql:"TEXT NOT NULL"`
	Payload string `structs:"payload" sql:"TEXT NOT NULL"`
}

func recordColumns() (names []string, defs []string) {
	for _, f := range structs.Fields(recordRow{}) {
		name := f.Tag("structs")
		names = append(names, name)
		defs = append(defs, name+" "+f.Tag("sql"))
	}

	return names, defs
}

// SQLiteWriter stores records in a SQLite database. It implements
// statechange.Sink. Records are buffered and written in batches; buffered
// records are also written when the process exits through atexit.
type SQLiteWriter struct {
	*sql.DB
	statement *sql.Stmt

	dbName    string
	pending   []recordRow
	batchSize int
	nextSeq   int64

	log logging.LeveledLogger
}

// NewSQLiteWriter creates a writer for the database at path. An empty path
// picks a unique name in the working directory. The ".sqlite3" extension is
// added when missing.
func NewSQLiteWriter(path string, loggerFactory logging.LoggerFactory) *SQLiteWriter {
	if path == "" {
		path = "emucore_replay_" + xid.New().String()
	}

	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	w := &SQLiteWriter{
		dbName:    path,
		batchSize: 10000,
		log:       logs.OrDiscard(loggerFactory).NewLogger(logs.ScopeReplayLog),
	}

	atexit.Register(func() {
		if err := w.Flush(); err != nil {
			w.log.Errorf("flushing %s at exit: %v", w.dbName, err)
		}
	})

	return w
}

// Path returns the database file name.
func (w *SQLiteWriter) Path() string {
	return w.dbName
}

// SetBatchSize sets how many records are buffered before they are written.
func (w *SQLiteWriter) SetBatchSize(n int) {
	if n < 1 {
		n = 1
	}

	w.batchSize = n
}

// Init creates the database. It refuses to overwrite an existing file. When
// it fails, the half-made file is removed, so Init may be called again.
func (w *SQLiteWriter) Init() error {
	if _, err := os.Stat(w.dbName); err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, w.dbName)
	}

	db, err := sql.Open("sqlite3", w.dbName)
	if err != nil {
		return fmt.Errorf("replaylog: opening %s: %w", w.dbName, err)
	}

	w.DB = db

	if err := w.setup(); err != nil {
		w.discard()
		return err
	}

	w.log.Infof("recording replay log to %s", w.dbName)

	return nil
}

func (w *SQLiteWriter) setup() error {
	if err := w.createTables(); err != nil {
		return err
	}

	names, _ := recordColumns()
	placeholders := strings.Repeat("?, ", len(names)-1) + "?"

	stmt, err := w.Prepare(
		"INSERT INTO records (" + strings.Join(names, ", ") + ") VALUES (" +
			placeholders + ")")
	if err != nil {
		return fmt.Errorf("replaylog: preparing insert: %w", err)
	}

	w.statement = stmt

	return nil
}

// discard closes and deletes a database that Init could not set up.
func (w *SQLiteWriter) discard() {
	if err := w.DB.Close(); err != nil {
		w.log.Warnf("closing %s: %v", w.dbName, err)
	}

	w.DB = nil
	w.statement = nil

	err := os.Remove(w.dbName)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.log.Warnf("removing %s: %v", w.dbName, err)
	}
}

// schema lists the statements that create an empty database.
var schema = func() []string {
	_, defs := recordColumns()

	return []string{
		"CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)",
		"CREATE TABLE records (\n\t" + strings.Join(defs, ",\n\t") + "\n)",
		"CREATE INDEX records_time_index ON records (time)",
	}
}

func (w *SQLiteWriter) createTables() error {
	for _, s := range schema() {
		if _, err := w.Exec(s); err != nil {
			return fmt.Errorf("replaylog: creating tables: %w", err)
		}
	}

	meta := map[string]string{
		"format":    strconv.Itoa(FormatVersion),
		"main_freq": strconv.FormatUint(uint64(emutime.MainFreq), 10),
	}
	for k, v := range meta {
		if _, err := w.Exec("INSERT INTO meta VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("replaylog: writing meta: %w", err)
		}
	}

	return nil
}

// Append buffers a record, writing the buffer when it is full.
func (w *SQLiteWriter) Append(r statechange.Record) error {
	if uint64(r.Time) > math.MaxInt64 {
		return fmt.Errorf("replaylog: time %d does not fit the database", r.Time)
	}

	kind, body, err := statechange.EncodePayload(r.Payload)
	if err != nil {
		return err
	}

	w.pending = append(w.pending, recordRow{
		Seq:     w.nextSeq,
		Time:    int64(r.Time),
		Kind:    kind,
		Payload: string(body),
	})
	w.nextSeq++

	if len(w.pending) >= w.batchSize {
		return w.Flush()
	}

	return nil
}

// Flush writes all the buffered records in one transaction.
func (w *SQLiteWriter) Flush() error {
	if len(w.pending) == 0 || w.DB == nil {
		return nil
	}

	tx, err := w.Begin()
	if err != nil {
		return fmt.Errorf("replaylog: %w", err)
	}

	stmt := tx.Stmt(w.statement)
	for _, row := range w.pending {
		if _, err := stmt.Exec(structs.Values(row)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("replaylog: inserting record %d: %w", row.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replaylog: %w", err)
	}

	w.log.Debugf("wrote %d records to %s", len(w.pending), w.dbName)
	w.pending = nil

	return nil
}

// Close writes the buffered records and closes the database.
func (w *SQLiteWriter) Close() error {
	if w.DB == nil {
		return nil
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if err := w.statement.Close(); err != nil {
		return fmt.Errorf("replaylog: %w", err)
	}

	err := w.DB.Close()
	w.DB = nil

	return err
}

var _ statechange.Sink = (*SQLiteWriter)(nil)
