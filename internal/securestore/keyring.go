package securestore

import (
	"time"

	"github.com/zalando/go-keyring"
)

// ServiceName identifies mooring entries in the OS keyring.
const ServiceName = "mooring"

// Keyring abstracts the OS credential store so tests can substitute a fake.
type Keyring interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

// OSKeyring implements the Keyring interface using the OS keychain.
type OSKeyring struct{}

// NewOSKeyring creates a new OS keyring wrapper.
func NewOSKeyring() *OSKeyring {
	return &OSKeyring{}
}

// Set stores a secret in the OS keyring.
func (k *OSKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

// Get retrieves a secret from the OS keyring.
func (k *OSKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

// Delete removes a secret from the OS keyring.
func (k *OSKeyring) Delete(service, user string) error {
	return keyring.Delete(service, user)
}

// probeKeyringTimeout is the maximum time to wait for a keyring probe.
// Prevents CLI startup from blocking if the OS keyring daemon is slow or
// hung.
const probeKeyringTimeout = 3 * time.Second

// ProbeKeyring tests if the keyring is available, with a timeout to prevent
// blocking startup if the OS keyring daemon is unresponsive.
func ProbeKeyring(kr Keyring) bool {
	ch := make(chan bool, 1)
	go func() {
		ch <- probeKeyringSync(kr)
	}()

	select {
	case result := <-ch:
		return result
	case <-time.After(probeKeyringTimeout):
		return false
	}
}

// probeKeyringSync performs the actual synchronous keyring probe.
func probeKeyringSync(kr Keyring) bool {
	const (
		testService = "mooring-probe"
		testUser    = "probe"
		testValue   = "test"
	)

	// Try to set a test value
	if err := kr.Set(testService, testUser, testValue); err != nil {
		return false
	}

	// Try to get the test value
	val, err := kr.Get(testService, testUser)
	if err != nil || val != testValue {
		_ = kr.Delete(testService, testUser)
		return false
	}

	// Clean up the test value
	if err := kr.Delete(testService, testUser); err != nil {
		return false
	}

	return true
}
