//go:build unix

package fsx

import (
	"errors"
	"os"
	"syscall"
)

// flockTry attempts a non-blocking exclusive flock(2) on f. Returns
// errWouldBlock if another process holds the lock.
func flockTry(f *os.File) error {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return errWouldBlock
		}
		return err
	}
	return nil
}

// flockRelease releases a lock previously acquired with flockTry. Safe
// to call when not locked.
func flockRelease(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
