package engine

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/ftahirops/spikemon/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLogLine bounds a single event log line. Longer lines are reported
// as malformed and skipped.
const maxLogLine = 1024 * 1024

// ErrLineTooLong is wrapped in the ParseError for an oversized line.
var ErrLineTooLong = fmt.Errorf("line exceeds %d bytes", maxLogLine)

// EventLogWriter appends spike events to a JSON-lines file. Every record is
// synced to disk before Append returns.
type EventLogWriter struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// OpenEventLog opens (or creates) path for appending.
func OpenEventLog(path string) (*EventLogWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}
	return &EventLogWriter{path: path, f: f}, nil
}

// Path returns the log file path.
func (w *EventLogWriter) Path() string { return w.path }

// Append writes one event as a single line.
func (w *EventLogWriter) Append(e model.SpikeEvent) error {
	data, err := json.Marshal(model.NewLogRecord(e))
	if err != nil {
		return &PersistenceError{Path: w.path, Err: err}
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return &PersistenceError{Path: w.path, Err: os.ErrClosed}
	}
	if _, err := w.f.Write(data); err != nil {
		return &PersistenceError{Path: w.path, Err: err}
	}
	if err := w.f.Sync(); err != nil {
		return &PersistenceError{Path: w.path, Err: err}
	}
	return nil
}

// Close closes the underlying file.
func (w *EventLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// LogQuery filters replayed records. Nil fields do not filter.
type LogQuery struct {
	Resource *model.ResourceKind
	Since    *int64 // ts_start >= Since
	Until    *int64 // ts_start <= Until
	Limit    *int   // maximum number of matching records
}

func (q LogQuery) matches(r *model.LogRecord) bool {
	if q.Resource != nil && r.Resource != q.Resource.String() {
		return false
	}
	if q.Since != nil && r.TsStart < *q.Since {
		return false
	}
	if q.Until != nil && r.TsStart > *q.Until {
		return false
	}
	return true
}

// ReplayedRecord is a matching log line, raw and decoded.
type ReplayedRecord struct {
	Line   int
	Raw    string
	Record model.LogRecord
}

// ReplayEventLog streams records from r in file order. Malformed lines are
// passed to onMalformed (if non-nil) and skipped. Replay stops after
// q.Limit matches, at EOF, or when visit returns an error.
func ReplayEventLog(r io.Reader, q LogQuery, onMalformed func(*ParseError), visit func(ReplayedRecord) error) error {
	if q.Limit != nil && *q.Limit <= 0 {
		return nil
	}
	br := bufio.NewReaderSize(r, 64*1024)

	matched := 0
	lineNo := 0
	for {
		line, tooLong, readErr := readLogLine(br)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return readErr
		}
		if readErr != nil && len(line) == 0 && !tooLong {
			return nil
		}
		lineNo++
		if tooLong {
			if onMalformed != nil {
				onMalformed(&ParseError{Line: lineNo, Err: ErrLineTooLong})
			}
		} else if len(bytes.TrimSpace(line)) > 0 {
			rec, err := decodeLogRecord(line)
			switch {
			case err != nil:
				if onMalformed != nil {
					onMalformed(&ParseError{Line: lineNo, Err: err})
				}
			case q.matches(&rec):
				if err := visit(ReplayedRecord{Line: lineNo, Raw: string(line), Record: rec}); err != nil {
					return err
				}
				matched++
				if q.Limit != nil && matched >= *q.Limit {
					return nil
				}
			}
		}
		if readErr != nil {
			return nil
		}
	}
}

// readLogLine returns the next line without its line ending. A line over
// maxLogLine is consumed up to its newline and returned empty with tooLong
// set. err is io.EOF on the last line.
func readLogLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(bytes.TrimRight(chunk, "\r\n")) > maxLogLine {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimRight(line, "\r\n"), tooLong, rerr
	}
}

// ReadEventLog opens path and collects every matching record. On a read
// error the records collected so far are returned with it.
func ReadEventLog(path string, q LogQuery, onMalformed func(*ParseError)) ([]ReplayedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}
	defer f.Close()

	var out []ReplayedRecord
	err = ReplayEventLog(f, q, onMalformed, func(r ReplayedRecord) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// wireRecord mirrors model.LogRecord with pointers so that missing fields
// can be told apart from zero values.
type wireRecord struct {
	Resource     *string                `json:"resource"`
	TsStart      *int64                 `json:"ts_start"`
	TsEnd        *int64                 `json:"ts_end"`
	DurationSecs *int64                 `json:"duration_secs"`
	Peak         *float64               `json:"peak"`
	Threshold    *float64               `json:"threshold"`
	Top          *[]model.ProcessSample `json:"top"`
}

func decodeLogRecord(line []byte) (model.LogRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(line, &w); err != nil {
		return model.LogRecord{}, err
	}
	var missing string
	switch {
	case w.Resource == nil:
		missing = "resource"
	case w.TsStart == nil:
		missing = "ts_start"
	case w.TsEnd == nil:
		missing = "ts_end"
	case w.DurationSecs == nil:
		missing = "duration_secs"
	case w.Peak == nil:
		missing = "peak"
	case w.Threshold == nil:
		missing = "threshold"
	case w.Top == nil:
		missing = "top"
	}
	if missing != "" {
		return model.LogRecord{}, fmt.Errorf("missing field %q", missing)
	}
	return model.LogRecord{
		Resource:     *w.Resource,
		TsStart:      *w.TsStart,
		TsEnd:        *w.TsEnd,
		DurationSecs: *w.DurationSecs,
		Peak:         *w.Peak,
		Threshold:    *w.Threshold,
		Top:          *w.Top,
	}, nil
}
