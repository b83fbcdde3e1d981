package store

import "sync"

// keyPool recycles key buffers on the write-through path, which saves a job
// on every phase transition.
var keyPool = sync.Pool{
	New: func() any {
		// Prefix + "idx:" + index name + value + "export-" nanoid fits comfortably.
		return make([]byte, 0, 128)
	},
}

// buildKey constructs a database key from prefix and suffix using a pooled buffer.
// Callers must call releaseKey when done with the key.
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

// buildIndexKey constructs "<prefix>idx:<name>:<value>:" plus id when id is non-empty.
// An empty id yields the scan prefix for every entry with that value.
// Callers must call releaseKey when done with the key.
func buildIndexKey(prefix, name, value, id string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, "idx:"...)
	buf = append(buf, name...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	buf = append(buf, ':')
	buf = append(buf, id...)
	return buf
}

// releaseKey returns a key buffer to the pool. The slice must not be used afterwards.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0]) //nolint:staticcheck // Slice header allocation is acceptable here
	}
}
