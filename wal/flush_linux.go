//go:build linux
// +build linux

package wal

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync flushes file data to stable storage without forcing a metadata
// sync when the kernel can avoid one.
func fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}

func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

func adviseRandom(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM)
}
