package securestore

import (
	moorerr "github.com/akodra/mooring/pkg/errors"

	"github.com/akodra/mooring/internal/telemetry"
)

// instrumentedStore decorates a Store with per-operation telemetry.
type instrumentedStore struct {
	inner   Store
	backend string
	rec     *telemetry.Recorder
}

// Instrumented wraps s so every operation is counted under the backend
// label. A nil recorder passes through uncounted.
func Instrumented(s Store, backend string, rec *telemetry.Recorder) Store {
	return &instrumentedStore{inner: s, backend: backend, rec: rec}
}

func (s *instrumentedStore) Load(key string) ([]byte, error) {
	data, err := s.inner.Load(key)
	s.record("load", err)
	return data, err
}

func (s *instrumentedStore) Save(key string, data []byte) error {
	err := s.inner.Save(key, data)
	s.record("save", err)
	return err
}

func (s *instrumentedStore) Delete(key string) error {
	err := s.inner.Delete(key)
	s.record("delete", err)
	return err
}

func (s *instrumentedStore) Close() error {
	return s.inner.Close()
}

func (s *instrumentedStore) record(op string, err error) {
	outcome := telemetry.OutcomeSuccess
	switch {
	case moorerr.Is(err, moorerr.ErrStoreKeyNotFound):
		outcome = telemetry.OutcomeMiss
	case err != nil:
		outcome = telemetry.OutcomeFailure
	}
	s.rec.StoreOperation(s.backend, op, outcome)
}
