//go:build windows

package securestore

// mlock is a no-op on Windows; VirtualLock is not worth the page-quota
// bookkeeping for a single 32-byte key.
func mlock(_ []byte) bool {
	return false
}

// munlock is a no-op on Windows.
func munlock(_ []byte) {}
