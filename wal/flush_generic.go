//go:build !linux
// +build !linux

package wal

import "os"

func fdatasync(f *os.File) error {
	return f.Sync()
}

func adviseSequential(f *os.File) {}

func adviseRandom(f *os.File) {}
