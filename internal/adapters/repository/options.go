package repository

type settings struct {
	dir string
}

// Option configures a store.
type Option func(*settings)

// WithDir places the badger store on disk under dir.
func WithDir(dir string) Option {
	return func(s *settings) {
		s.dir = dir
	}
}
