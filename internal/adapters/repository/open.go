package repository

import "fmt"

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Open returns the aggregate store for a backend name.
func Open(backend string, opts ...Option) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendBadger:
		return NewBadgerStore(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
