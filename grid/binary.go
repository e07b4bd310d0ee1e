package grid

import (
	"bytes"
	"encoding/binary"
	"io"
)

// anchorRecord is the fixed-width on-disk form of one anchor.
// It is designed to be easily portable to other languages and utilities.
type anchorRecord struct {
	X int64
	Y int64
}

// WriteAnchors writes the anchors as fixed-width little-endian records, a
// compact interchange form for large partitioned grids.
func WriteAnchors(writer io.Writer, anchors []Anchor) error {
	records := make([]anchorRecord, len(anchors))
	for i, anchor := range anchors {
		records[i] = anchorRecord{X: int64(anchor.X), Y: int64(anchor.Y)}
	}
	return binary.Write(writer, binary.LittleEndian, records)
}

// ReadAnchors reads anchors written by WriteAnchors.
func ReadAnchors(data []byte) ([]Anchor, error) {
	count := len(data) / binary.Size(anchorRecord{})
	records := make([]anchorRecord, count)

	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, records)
	if err != nil {
		return nil, err
	}

	anchors := make([]Anchor, count)
	for i, record := range records {
		anchors[i] = Anchor{X: int(record.X), Y: int(record.Y)}
	}
	return anchors, nil
}
