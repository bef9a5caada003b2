package wal

import "io"

// Decoder reads consecutive [header][payload] records from a stream. io.EOF
// marks a clean end of stream, io.ErrUnexpectedEOF a torn record.
type Decoder struct {
	r         io.Reader
	headerBuf []byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, headerBuf: make([]byte, EntryMetadataSize)}
}

func (d *Decoder) Decode() (EntryMetadata, []byte, error) {
	m, err := readEntryMetadata(d.r, d.headerBuf)
	if err != nil {
		return EntryMetadata{}, nil, err
	}
	payload := make([]byte, m.Length)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return EntryMetadata{}, nil, err
	}
	return m, payload, nil
}
