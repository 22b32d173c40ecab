package journal

// Entry is a producer-supplied (key, payload) pair awaiting assignment of an
// offset. Both fields are opaque byte strings; a nil Key is a null key.
type Entry struct {
	Key     []byte
	Payload []byte
}

// NewEntry constructs an Entry. It exists mainly so the façade's
// CreateEntry has something to return — building an Entry by hand is just
// as valid.
func NewEntry(key, payload []byte) Entry {
	return Entry{Key: key, Payload: payload}
}

// ReadEntry is a single decoded record handed back to a consumer, carrying
// the offset it was assigned at append time.
type ReadEntry struct {
	Offset  uint64
	Key     []byte
	Payload []byte
}
