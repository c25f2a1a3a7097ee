// Package incident keeps an append-only CBOR log of watchdog escalations so
// the cause of a reset survives it.
package incident

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one escalation as written to disk.
type Record struct {
	ID        string        `cbor:"1,keyasint" json:"id"`
	Watchdog  string        `cbor:"2,keyasint" json:"watchdog"`
	At        time.Time     `cbor:"3,keyasint" json:"at"`
	Strikes   int           `cbor:"4,keyasint" json:"strikes"`
	Threshold int           `cbor:"5,keyasint" json:"threshold"`
	Stalled   time.Duration `cbor:"6,keyasint" json:"stalled"`
	// Recovery is "callback" or "reset".
	Recovery string `cbor:"7,keyasint" json:"recovery"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create incident CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create incident CBOR decoder mode: %v", err))
	}
}

// Log appends records to a file. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// Open opens path for appending, creating it if needed.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open incident log: %w", err)
	}
	return &Log{
		file:    f,
		encoder: encMode.NewEncoder(f),
	}, nil
}

// Append writes rec and syncs it to disk; the process may be replaced right
// after this returns.
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return os.ErrClosed
	}
	if err := l.encoder.Encode(rec); err != nil {
		return fmt.Errorf("encode incident: %w", err)
	}
	return l.file.Sync()
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// ReadAll returns the records in path, oldest first. A missing file holds no
// records. A record cut short by a crash ends the log.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open incident log: %w", err)
	}
	defer f.Close()

	dec := decMode.NewDecoder(f)
	var out []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decode incident %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}

// Recent returns at most limit of the newest records, oldest first.
func Recent(path string, limit int) ([]Record, error) {
	all, err := ReadAll(path)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// Last returns the newest record, if any.
func Last(path string) (Record, bool, error) {
	recent, err := Recent(path, 1)
	if err != nil || len(recent) == 0 {
		return Record{}, false, err
	}
	return recent[0], true, nil
}
