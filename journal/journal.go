// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/frictionlessdata/datapackage-go/datapackage"
	"github.com/frictionlessdata/datapackage-go/validator"
	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// This is the upload journal, which logs all upload activity. The journal is a
// table of upload records (one per upload) in an SQLite database.

// a record storing all information relevant to an upload
type Record struct {
	// UUID associated with the upload
	Id uuid.UUID `json:"id"`
	// name of the uploaded data package and the directory it was read from
	Package string `json:"package"`
	Path    string `json:"path"`
	// the Open Spending account that owns the package
	Owner string `json:"owner"`
	// times at which the upload began and at which it completed
	StartTime time.Time `json:"start_time"`
	StopTime  time.Time `json:"stop_time"`
	// status of the upload ("succeeded" or "failed")
	Status string `json:"status"`
	// explanation of a failed upload
	Message string `json:"message,omitempty"`
	// size of the upload's payload in bytes
	PayloadSize int64 `json:"payload_size"`
	// number of files in the upload's payload
	NumFiles int `json:"num_files"`
	// descriptor of the uploaded package (stored separate from record)
	Manifest *datapackage.Package `json:"-"`
}

// opens the upload journal stored in the SQLite database at the given path,
// creating the database and its schema if necessary
func Init(dbPath string) error {
	if IsOpen() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return &CantOpenError{Message: err.Error()}
	}
	conn, err := sqlite.OpenConn(dbPath, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return &CantOpenError{Message: err.Error()}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return &CantOpenError{Message: err.Error()}
	}
	openChannels()
	go uploadJournalProcess(conn)
	return nil
}

// saves and closes the upload journal (if it's been opened)
func Finalize() error {
	if IsOpen() {
		channels_.Input.Shutdown <- struct{}{}
		err := <-channels_.Output.Error
		closeChannels()
		return err
	}
	return nil
}

// returns true if the journal is open for writing, false if not
func IsOpen() bool {
	if channels_.Open { // has Init() been called?
		channels_.Input.CheckIfOpen <- struct{}{}
		select {
		case isOpen := <-channels_.Output.IsOpen:
			return isOpen
		case <-time.After(1 * time.Second): // after a second, we assume the goroutine has crashed
			closeChannels()
			return false
		}
	}
	return false
}

// records a completed upload
// record: the record containing all upload information
func RecordUpload(record Record) error {
	switch record.Status {
	case "succeeded", "failed":
		// pass-through (see below)
	default:
		return &NewRecordError{
			Id:      record.Id,
			Message: fmt.Sprintf("Invalid status: %s", record.Status),
		}
	}

	if !IsOpen() {
		return &NotOpenError{}
	}

	channels_.Input.CreateRecord <- record
	return <-channels_.Output.Error
}

// retrieves the record for the upload with the given ID
func UploadRecord(id uuid.UUID) (Record, error) {
	if !IsOpen() {
		return Record{}, &NotOpenError{}
	}
	channels_.Input.FetchRecord <- id
	select {
	case records := <-channels_.Output.Records:
		return records[0], nil
	case err := <-channels_.Output.Error:
		return Record{}, err
	}
}

// retrieves records for uploads that started within the time range with the
// given (inclusive) bounds, ordered by start time
// start: the beginning of the time period of interest
// stop: the end of the time period of interest
func Records(start, stop time.Time) ([]Record, error) {
	if !IsOpen() {
		return nil, &NotOpenError{}
	}
	channels_.Input.FetchRecords <- TimeRange{Start: start, Stop: stop}
	select {
	case records := <-channels_.Output.Records:
		return records, nil
	case err := <-channels_.Output.Error:
		return nil, err
	}
}

// parses a date (YYYY-MM-DD) or an RFC 3339 timestamp, as accepted by
// queries on the journal
func ParseTime(value string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time: %s (expected YYYY-MM-DD or RFC 3339)", value)
}

//-----------
// Internals
//-----------

const schema = `
CREATE TABLE IF NOT EXISTS uploads (
  id TEXT PRIMARY KEY,
  package TEXT NOT NULL,
  path TEXT NOT NULL,
  owner TEXT NOT NULL,
  start_time TEXT NOT NULL,
  stop_time TEXT NOT NULL,
  status TEXT NOT NULL,
  message TEXT NOT NULL,
  payload_size INTEGER NOT NULL,
  num_files INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS uploads_by_start_time ON uploads (start_time);
CREATE TABLE IF NOT EXISTS manifests (
  id TEXT PRIMARY KEY REFERENCES uploads (id),
  descriptor TEXT NOT NULL
);
`

// times are stored as fixed-width UTC text so that they sort chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// The upload journal gets its own goroutine, which owns the database
// connection. Here we define "input" channels (main process -> goroutine) and
// "output" channels (goroutine -> main process) for passing data back and
// forth

type TimeRange struct {
	Start, Stop time.Time
}

var channels_ struct {
	Open  bool // true if channels are open, false if not
	Input struct {
		CreateRecord chan Record    // for creating new records
		CheckIfOpen  chan struct{}  // for checking to see whether the database is open
		FetchRecord  chan uuid.UUID // for fetching a single record
		FetchRecords chan TimeRange // for fetching records within a time range
		Shutdown     chan struct{}  // for shutting down the database
	}

	Output struct {
		Records chan []Record // for returning records
		Error   chan error    // for returning errors
		IsOpen  chan bool     // for answering queries about whether the database is open
	}
}

func uploadJournalProcess(conn *sqlite.Conn) {
	// handle requests
	running := true
	for running {
		select {

		case <-channels_.Input.CheckIfOpen:
			channels_.Output.IsOpen <- true // always true if this goroutine is running!

		case record := <-channels_.Input.CreateRecord:
			err := createRecord(conn, record)
			channels_.Output.Error <- err

		case id := <-channels_.Input.FetchRecord:
			record, err := fetchRecord(conn, id)
			if err != nil {
				channels_.Output.Error <- err
			} else {
				channels_.Output.Records <- []Record{record}
			}

		case timeRange := <-channels_.Input.FetchRecords:
			records, err := fetchRecords(conn, timeRange.Start, timeRange.Stop)
			if err != nil {
				channels_.Output.Error <- err
			} else {
				channels_.Output.Records <- records
			}

		case <-channels_.Input.Shutdown:
			var closeErr error
			if err := conn.Close(); err != nil {
				closeErr = &CantCloseError{
					Message: err.Error(),
				}
			}
			channels_.Output.Error <- closeErr
			running = false
		}
	}
}

func openChannels() {
	channels_.Open = true
	channels_.Input.CreateRecord = make(chan Record)
	channels_.Input.CheckIfOpen = make(chan struct{})
	channels_.Input.FetchRecord = make(chan uuid.UUID)
	channels_.Input.FetchRecords = make(chan TimeRange)
	channels_.Input.Shutdown = make(chan struct{})
	channels_.Output.Records = make(chan []Record)
	channels_.Output.Error = make(chan error)
	channels_.Output.IsOpen = make(chan bool)
}

func closeChannels() {
	channels_.Open = false
	close(channels_.Input.CreateRecord)
	close(channels_.Input.CheckIfOpen)
	close(channels_.Input.FetchRecord)
	close(channels_.Input.FetchRecords)
	close(channels_.Input.Shutdown)
	close(channels_.Output.Records)
	close(channels_.Output.Error)
	close(channels_.Output.IsOpen)
}

func createRecord(conn *sqlite.Conn, record Record) (err error) {
	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return &NewRecordError{Id: record.Id, Message: err.Error()}
	}
	defer endTx(&err)

	err = sqlitex.Execute(conn, `INSERT INTO uploads
  (id, package, path, owner, start_time, stop_time, status, message, payload_size, num_files)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			record.Id.String(),
			record.Package,
			record.Path,
			record.Owner,
			record.StartTime.UTC().Format(timeLayout),
			record.StopTime.UTC().Format(timeLayout),
			record.Status,
			record.Message,
			record.PayloadSize,
			record.NumFiles,
		},
	})
	if err != nil {
		return &NewRecordError{Id: record.Id, Message: err.Error()}
	}

	// if the upload succeeded, store its manifest (indexed by UUID)
	if record.Manifest != nil {
		var jsonManifest []byte
		jsonManifest, err = json.Marshal(record.Manifest.Descriptor())
		if err != nil {
			return &NewRecordError{Id: record.Id, Message: err.Error()}
		}
		err = sqlitex.Execute(conn, "INSERT INTO manifests (id, descriptor) VALUES (?, ?)",
			&sqlitex.ExecOptions{Args: []any{record.Id.String(), string(jsonManifest)}})
		if err != nil {
			return &NewRecordError{Id: record.Id, Message: err.Error()}
		}
	}
	return nil
}

const selectRecords = `SELECT uploads.id, package, path, owner, start_time, stop_time, status,
  message, payload_size, num_files, manifests.descriptor
FROM uploads LEFT JOIN manifests ON uploads.id = manifests.id`

// reads a record from a row produced by selectRecords
func scanRecord(stmt *sqlite.Stmt) (Record, error) {
	id, err := uuid.Parse(stmt.ColumnText(0))
	if err != nil {
		return Record{}, &InvalidRecordError{Message: err.Error()}
	}
	record := Record{
		Id:          id,
		Package:     stmt.ColumnText(1),
		Path:        stmt.ColumnText(2),
		Owner:       stmt.ColumnText(3),
		Status:      stmt.ColumnText(6),
		Message:     stmt.ColumnText(7),
		PayloadSize: stmt.ColumnInt64(8),
		NumFiles:    stmt.ColumnInt(9),
	}
	if record.StartTime, err = time.Parse(timeLayout, stmt.ColumnText(4)); err != nil {
		return Record{}, &InvalidRecordError{Id: id, Message: err.Error()}
	}
	if record.StopTime, err = time.Parse(timeLayout, stmt.ColumnText(5)); err != nil {
		return Record{}, &InvalidRecordError{Id: id, Message: err.Error()}
	}
	if descriptor := stmt.ColumnText(10); descriptor != "" {
		record.Manifest, err = datapackage.FromString(descriptor, "manifest.json", validator.InMemoryLoader())
		if err != nil {
			return Record{}, &InvalidRecordError{
				Id:      id,
				Message: "unable to retrieve manifest for successful upload",
			}
		}
	}
	return record, nil
}

func fetchRecord(conn *sqlite.Conn, id uuid.UUID) (Record, error) {
	var record Record
	found := false
	err := sqlitex.Execute(conn, selectRecords+" WHERE uploads.id = ?", &sqlitex.ExecOptions{
		Args: []any{id.String()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var err error
			record, err = scanRecord(stmt)
			found = true
			return err
		},
	})
	if err != nil {
		return Record{}, err
	}
	if !found {
		return Record{}, &RecordNotFoundError{Id: id}
	}
	return record, nil
}

func fetchRecords(conn *sqlite.Conn, start, stop time.Time) ([]Record, error) {
	records := make([]Record, 0)
	err := sqlitex.Execute(conn,
		selectRecords+" WHERE start_time >= ? AND start_time <= ? ORDER BY start_time", &sqlitex.ExecOptions{
			Args: []any{start.UTC().Format(timeLayout), stop.UTC().Format(timeLayout)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, err := scanRecord(stmt)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			},
		})
	return records, err
}
