//go:build !unix

package storage

// lockFile is a no-op where flock is unavailable; the in-process mutex of
// FileSink still serialises writers within one process.
func lockFile(string, bool) (func(), error) {
	return func() {}, nil
}
