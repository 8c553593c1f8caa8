//go:build unix

package fswait

import "golang.org/x/sys/unix"

// Readable reports, via access(2), whether path exists and can be opened for
// reading by this process.
func Readable(path string) error {
	return unix.Access(path, unix.R_OK)
}
