package wal

import "os"

type Statistics struct {
	EntryCount  int64
	StoredBytes int64
	OnDiskBytes int64
}

// GetStatistics reports the entry count, the bytes issued to the writer and
// the bytes currently visible on disk (which lag behind until a flush).
func (l *LogFile) GetStatistics() Statistics {
	stats := Statistics{
		EntryCount:  l.count,
		StoredBytes: l.storage.Size(),
	}
	if info, err := os.Stat(l.storage.Name()); err == nil {
		stats.OnDiskBytes = info.Size()
	}
	return stats
}
