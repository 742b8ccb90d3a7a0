// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build linux
// +build linux

package osutil

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// SharedMem is a name-addressable shared memory region. The name is what
// the engine child receives in SHM_ID and opens on its side with shm_open,
// so unlike with memfd the region must live in the POSIX shm namespace.
type SharedMem struct {
	f    *os.File
	Mem  []byte
	Name string
}

const shmDir = "/dev/shm"

// CreateSharedMem creates a shared memory region of the requested size and
// maps it into the process. On Linux shm_open(name) is an open of
// /dev/shm/name, so we do just that.
func CreateSharedMem(name string, size int) (*SharedMem, error) {
	path := filepath.Join(shmDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create shm region %v: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to truncate shm region %v: %w", path, err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to mmap shm region %v: %w", path, err)
	}
	return &SharedMem{f: f, Mem: mem, Name: name}, nil
}

// Close destroys the mapping and unlinks the region.
func (shm *SharedMem) Close() error {
	err1 := unix.Munmap(shm.Mem)
	err2 := shm.f.Close()
	err3 := os.Remove(filepath.Join(shmDir, shm.Name))
	switch {
	case err1 != nil:
		return err1
	case err2 != nil:
		return err2
	default:
		return err3
	}
}
