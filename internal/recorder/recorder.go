// Package recorder logs raw service traffic to disk as CBOR records.
//
// A log file starts with an 8-byte magic followed by records, each a 12-byte
// little-endian header (unix nanos int64, payload length uint32) and a CBOR
// encoded Entry.
package recorder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const magic = "GCTRAFF1"

// Direction of a recorded payload.
const (
	Outbound = "out"
	Inbound  = "in"
)

// ErrBadMagic is returned when a file is not a traffic log.
var ErrBadMagic = errors.New("not a traffic log")

// Entry is one recorded payload.
type Entry struct {
	Dir  string `cbor:"dir"`
	Data []byte `cbor:"data"`
}

// Record is an entry with the time it was written.
type Record struct {
	Time time.Time
	Entry
}

// Writer appends records to a traffic log. It implements stream.Tap and is
// safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	buf  *bufio.Writer
	path string
	now  func() time.Time
}

// NewWriter creates <dir>/<timestamp>_traffic.bin.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_traffic.bin", time.Now().Format("20060102_150405")))

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriterSize(f, 64*1024)
	if _, err := buf.WriteString(magic); err != nil {
		f.Close()
		return nil, err
	}
	if err := buf.Flush(); err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{f: f, buf: buf, path: path, now: time.Now}, nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Outbound records a payload sent to the service.
func (w *Writer) Outbound(p []byte) {
	w.record(Outbound, p)
}

// Inbound records a payload received from the service.
func (w *Writer) Inbound(p []byte) {
	w.record(Inbound, p)
}

func (w *Writer) record(dir string, p []byte) {
	if err := w.Write(Entry{Dir: dir, Data: p}); err != nil {
		log.Printf("recorder: %v", err)
	}
}

// Write appends one entry.
func (w *Writer) Write(e Entry) error {
	payload, err := cbor.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf == nil {
		return errors.New("traffic log is closed")
	}

	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(w.now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := w.buf.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.buf.Write(payload); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf == nil {
		return nil
	}
	err := w.buf.Flush()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.buf = nil
	return err
}

// Reader reads records from a traffic log.
type Reader struct {
	r io.Reader
}

// NewReader checks the magic and returns a Reader positioned at the first record.
func NewReader(r io.Reader) (*Reader, error) {
	header := make([]byte, len(magic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(header) != magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadMagic, string(header))
	}
	return &Reader{r: bufio.NewReader(r)}, nil
}

// Next returns the next record, or io.EOF at the end of the log. A record cut
// short by a crash also ends the log.
func (r *Reader) Next() (Record, error) {
	var meta [12]byte
	if _, err := io.ReadFull(r.r, meta[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, io.EOF
		}
		return Record{}, err
	}
	ts := int64(binary.LittleEndian.Uint64(meta[:8]))
	size := binary.LittleEndian.Uint32(meta[8:12])

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, err
	}

	rec := Record{Time: time.Unix(0, ts)}
	if err := cbor.Unmarshal(payload, &rec.Entry); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
