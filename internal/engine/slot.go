package engine

import "sync/atomic"

// optionalFile holds at most one discovered path. Once filled it stays
// immutable until Clear. The filled flag is atomic so worker callbacks can
// poll Empty without locking; TrySet from worker callbacks is serialized
// by the engine mutex, and the known-file pass calls Clear and TrySet only
// with no tasks inflight, so the path value is never written concurrently.
type optionalFile struct {
	path   string
	filled atomic.Bool
}

func (f *optionalFile) Empty() bool {
	return !f.filled.Load()
}

// TrySet publishes p into the slot. Returns false if the slot is already
// filled, including when it already holds the same path.
func (f *optionalFile) TrySet(p string) bool {
	if f.filled.Load() {
		return false
	}
	f.path = p
	f.filled.Store(true)
	return true
}

// Clear empties the slot and returns the previous value.
func (f *optionalFile) Clear() string {
	p := f.path
	f.path = ""
	f.filled.Store(false)
	return p
}

// Path returns the held value ("" when empty).
func (f *optionalFile) Path() string {
	return f.path
}
