// Package flock wraps the flock(2) kernel API to provide advisory locks
// through the filesystem, used to enforce the single-exclusive-owner model
// over row files. Being advisory, other processes are free to ignore the
// lock altogether.
package flock

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
)

var (
	AlreadyLockedErr = fmt.Errorf("flock is already locked")
	NotLockedErr     = fmt.Errorf("flock is not locked")
	ClosedErr        = fmt.Errorf("underlying file descriptor has already been closed")
	CannotLockErr    = fmt.Errorf("could not obtain lock")
)

type Flock interface {
	// Lock attempts to acquire the exclusive lock without blocking. Returns
	// AlreadyLockedErr when this instance already holds the lock, ClosedErr
	// after Close, or CannotLockErr when the lock is held elsewhere.
	Lock() error

	// Unlock releases a lock previously acquired through Lock. Returns
	// NotLockedErr when the lock is not currently held, or ClosedErr after
	// Close.
	Unlock() error

	// Close releases the lock when held and closes the underlying file
	// descriptor. The instance cannot be reused afterwards.
	Close() error

	// Remove behaves like Close and additionally unlinks the lock file from
	// the filesystem.
	Remove() error

	// Write replaces the contents of the lock file with the provided buffer.
	Write(data []byte) error

	// Read reads the contents of the lock file into the provided buffer,
	// returning the amount read.
	Read(data []byte) (int, error)
}

// New returns a Flock for the file at path, creating it if needed. The file
// is not locked until Lock is called.
func New(path string) (Flock, error) {
	oldMask := syscall.Umask(0)
	defer syscall.Umask(oldMask)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}
	return &flock{file: f, fd: f.Fd(), name: path}, nil
}

type flock struct {
	mu     sync.Mutex
	file   *os.File
	fd     uintptr
	locked bool
	closed bool
	name   string
}

func (f *flock) Lock() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.closed:
		return ClosedErr
	case f.locked:
		return AlreadyLockedErr
	}

	if err := syscall.Flock(int(f.fd), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return errors.Join(CannotLockErr, err)
	}
	f.locked = true
	return nil
}

func (f *flock) Unlock() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.closed:
		return ClosedErr
	case !f.locked:
		return NotLockedErr
	}

	return f.unlock()
}

// unlock must be called with mu held.
func (f *flock) unlock() error {
	if f.closed || !f.locked {
		return nil
	}

	if err := syscall.Flock(int(f.fd), syscall.LOCK_UN); err != nil {
		return err
	}
	f.locked = false
	return nil
}

func (f *flock) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.close()
}

// close must be called with mu held.
func (f *flock) close() error {
	if f.closed {
		return ClosedErr
	}

	if err := f.unlock(); err != nil {
		return err
	}
	if err := f.file.Close(); err != nil {
		return err
	}
	f.closed = true
	return nil
}

func (f *flock) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}

	if err := os.Remove(f.name); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (f *flock) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.file.WriteAt(data, 0); err != nil {
		return err
	}
	return f.file.Sync()
}

func (f *flock) Read(data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.ReadAt(data, 0)
}
