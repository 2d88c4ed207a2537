//go:build windows

package keyring

import "os"

// lockFile on Windows is a no-op. The file backend is only a fallback
// there; Windows Credential Manager is the primary backend, so an
// unprotected first-time key race in the file path is acceptable.
func lockFile(_ *os.File) (unlock func(), err error) {
	return func() {}, nil
}
