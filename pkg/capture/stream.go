package capture

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxRecordSize limits a single record read back from a capture.
const MaxRecordSize = 1 << 20

// RecordReadWriter reads/writes records in bytes.
// Each record is prefixed by 4-byte (little-endian) indicate the length.
type RecordReadWriter struct {
	io.ReadWriter
}

// NewRecordReadWriter creates a RecordReadWriter with io.ReadWriter.
func NewRecordReadWriter(s io.ReadWriter) *RecordReadWriter {
	return &RecordReadWriter{s}
}

// ReadRecord reads one record. It returns io.EOF at a clean end of stream.
func (p *RecordReadWriter) ReadRecord() ([]byte, error) {
	return readRecord(p)
}

// WriteRecord writes one record.
func (p *RecordReadWriter) WriteRecord(rec []byte) error {
	return writeRecord(p, rec)
}

func readRecord(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxRecordSize {
		return nil, fmt.Errorf("record size %d exceeds %d", size, MaxRecordSize)
	}
	rec := make([]byte, size)
	if _, err := io.ReadFull(r, rec); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return rec, nil
}

func writeRecord(w io.Writer, rec []byte) error {
	size := uint32(len(rec))
	if err := binary.Write(w, binary.LittleEndian, size); err != nil {
		return err
	}
	_, err := w.Write(rec)
	return err
}
