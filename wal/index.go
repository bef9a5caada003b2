package wal

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/tysonmote/gommap"
)

const indexValueSize = 8

var (
	ErrIndexDoesNotExist = errors.New("index does not exist")
	ErrIndexCorrupt      = errors.New("index corrupt")
	ErrIndexFull         = errors.New("index is full")
	ErrMMapFailed        = errors.New("mmap failed")
)

// Index is an mmap'd sidecar file mapping entry ordinals to header byte
// offsets, so the Nth entry can be resolved without scanning the log. Slots
// are fixed 8-byte big-endian values; the slot count is fixed at creation.
type Index struct {
	path  string
	fd    *os.File
	data  gommap.MMap
	slots int64
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func createIndex(path string, slots int64) (*Index, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0650)
	if err != nil {
		return nil, err
	}
	err = fd.Truncate(slots * indexValueSize)
	if err != nil {
		fd.Close()
		os.Remove(path)
		return nil, err
	}
	idx := &Index{fd: fd, path: path, slots: slots}
	return idx, idx.mmap()
}

func openIndex(path string, slots int64) (*Index, error) {
	if !fileExists(path) {
		return nil, ErrIndexDoesNotExist
	}
	fd, err := os.OpenFile(path, os.O_RDWR, 0650)
	if err != nil {
		return nil, err
	}
	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}
	if info.Size() != slots*indexValueSize {
		fd.Close()
		return nil, ErrIndexCorrupt
	}
	idx := &Index{fd: fd, path: path, slots: slots}
	return idx, idx.mmap()
}

func (i *Index) mmap() error {
	mmapedData, err := gommap.Map(i.fd.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		i.fd.Close()
		return ErrMMapFailed
	}
	i.data = mmapedData
	return nil
}

func (i *Index) FilePath() string {
	return i.path
}

func (i *Index) Slots() int64 {
	return i.slots
}

func (i *Index) Sync() error {
	if err := i.data.Sync(gommap.MS_SYNC); err != nil {
		return ErrMMapFailed
	}
	if err := i.fd.Sync(); err != nil {
		return err
	}
	return nil
}

func (i *Index) Close() error {
	if i.fd == nil {
		return nil
	}
	err := i.Sync()
	if err != nil {
		return err
	}
	err = i.data.UnsafeUnmap()
	if err != nil {
		return err
	}
	err = i.fd.Close()
	i.fd = nil
	return err
}

func (i *Index) writePosition(ordinal, position int64) error {
	if ordinal < 0 || ordinal >= i.slots {
		return ErrIndexFull
	}
	writeOffset := ordinal * indexValueSize
	encoding.PutUint64(i.data[writeOffset:writeOffset+indexValueSize], uint64(position))
	return nil
}

func (i *Index) readPosition(ordinal int64) (int64, error) {
	if ordinal < 0 || ordinal >= i.slots {
		return 0, ErrIndexFull
	}
	writeOffset := ordinal * indexValueSize
	return int64(encoding.Uint64(i.data[writeOffset : writeOffset+indexValueSize])), nil
}

// IndexPopulator fills an index by scanning the log through a session's
// segment. It satisfies the CachePopulator hook.
type IndexPopulator struct {
	index *Index
}

func NewIndexPopulator(index *Index) *IndexPopulator {
	return &IndexPopulator{index: index}
}

func (p *IndexPopulator) PopulateCache(ctx context.Context, session Session, r *StreamSegment) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	d := NewDecoder(r)
	var ordinal, pos int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, _, err := d.Decode()
		if err == io.EOF {
			return p.index.Sync()
		}
		if err != nil {
			return err
		}
		if err := p.index.writePosition(ordinal, pos); err != nil {
			return err
		}
		pos = m.Offset + m.Length
		ordinal++
	}
}
