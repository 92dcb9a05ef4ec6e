// Package datarecording persists the activity of a simulation into a SQLite
// database.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all the tables created.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// New creates a new DataRecorder that writes into path.sqlite3. If path is
// empty, a unique name is generated.
func New(path string) DataRecorder {
	w := &sqliteWriter{
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.init()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := &sqliteWriter{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// A table buffers the entries of one struct type until the next flush.
type table struct {
	name       string
	structType reflect.Type
	insert     *sql.Stmt
	entries    []any
}

// sqliteWriter buffers entries in memory and writes them in one transaction
// per flush.
type sqliteWriter struct {
	*sql.DB

	lock       sync.Mutex
	dbName     string
	tables     map[string]*table
	tableNames []string
	batchSize  int
	entryCount int
}

func (t *sqliteWriter) init() {
	if t.dbName == "" {
		t.dbName = "procsim_recording_" + xid.New().String()
	}

	filename := t.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	t.DB = db
}

// columnType maps a field kind to the SQLite storage class of its column.
func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

// schema returns the column definitions of a table holding entries shaped
// like sample.
func schema(sample any) ([]string, error) {
	structType := reflect.TypeOf(sample)
	if structType == nil || structType.Kind() != reflect.Struct {
		return nil, errors.New("entry is not a struct")
	}

	names := structs.Names(sample)
	columns := make([]string, 0, len(names))

	for _, name := range names {
		field, _ := structType.FieldByName(name)

		sqlType, ok := columnType(field.Type.Kind())
		if !ok {
			return nil, fmt.Errorf("field %s has unsupported type %s",
				field.Name, field.Type)
		}

		columns = append(columns, name+" "+sqlType)
	}

	return columns, nil
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	columns, err := schema(sampleEntry)
	if err != nil {
		panic(err)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	_, err = t.Exec(fmt.Sprintf("CREATE TABLE %s (%s)",
		tableName, strings.Join(columns, ", ")))
	if err != nil {
		panic(fmt.Errorf("creating table %s: %w", tableName, err))
	}

	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", len(columns)), ", ")

	insert, err := t.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)",
		tableName, placeholders))
	if err != nil {
		panic(fmt.Errorf("preparing insert into %s: %w", tableName, err))
	}

	t.tables[tableName] = &table{
		name:       tableName,
		structType: reflect.TypeOf(sampleEntry),
		insert:     insert,
	}
	t.tableNames = append(t.tableNames, tableName)
}

func (t *sqliteWriter) InsertData(tableName string, entry any) {
	t.lock.Lock()
	defer t.lock.Unlock()

	table, exists := t.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		t.mustFlush()
	}
}

func (t *sqliteWriter) ListTables() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.tableNames...)
}

func (t *sqliteWriter) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.mustFlush()
}

// Close flushes the buffered entries and closes the database. It reports the
// flush failure instead of panicking.
func (t *sqliteWriter) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	err := t.flush()

	for _, name := range t.tableNames {
		t.tables[name].insert.Close()
	}

	return errors.Join(err, t.DB.Close())
}

func (t *sqliteWriter) mustFlush() {
	if err := t.flush(); err != nil {
		panic(err)
	}
}

func (t *sqliteWriter) flush() error {
	if t.entryCount == 0 {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return err
	}

	for _, name := range t.tableNames {
		if err := t.tables[name].writeTo(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, name := range t.tableNames {
		t.tables[name].entries = nil
	}

	t.entryCount = 0

	return nil
}

func (tb *table) writeTo(tx *sql.Tx) error {
	if len(tb.entries) == 0 {
		return nil
	}

	stmt := tx.Stmt(tb.insert)
	defer stmt.Close()

	for _, entry := range tb.entries {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return fmt.Errorf("inserting into %s: %w", tb.name, err)
		}
	}

	return nil
}
