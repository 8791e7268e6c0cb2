package cache

import "time"

// BytesCache is a minimal cache API storing raw bytes with TTL. The archiver
// client uses it to avoid refetching identical pv/window queries.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
