//go:build !unix

package fsx

import "os"

// flockTry reports locking as unsupported so WithLock degrades to
// running the body without mutual exclusion, matching the policy for
// filesystems that cannot cooperate.
func flockTry(f *os.File) error {
	return errFlockUnsupported
}

func flockRelease(f *os.File) error {
	return nil
}
