//go:build !unix

package fswait

import "os"

// Readable reports whether path exists.
func Readable(path string) error {
	_, err := os.Stat(path)
	return err
}
