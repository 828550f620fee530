// Package signalindex maps 128-bit signal identifiers to the 16-bit runtime
// indices used on the wire by one subscription.
//
// A Cache is built when a connection subscribes: every requested signal the
// subscriber is authorized for receives a dense index starting at zero, and the
// rest are recorded as unauthorized so the publisher can report them. The cache
// is immutable for the life of that subscription generation and is replaced
// wholesale when the subscriber changes its filter; any runtime index obtained
// from an older generation must be discarded.
//
// Binary image (all integers big-endian):
//
//	totalLength:u32 subscriberID:16B entryCount:u32
//	entryCount × { index:u16 signalID:16B sourceLength:u32 source:UTF-8 id:u32 }
//	unauthorizedCount:u32 unauthorizedCount × signalID:16B
//
// totalLength counts the whole image including its own four bytes.
package signalindex

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/arloliu/tickstream/endian"
	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/internal/hash"
	"github.com/arloliu/tickstream/measurement"
)

const (
	// UnknownIndex is returned for signals without a runtime index.
	UnknownIndex uint16 = 0xFFFF
	// MaxEntries is the size of the runtime index space (0..65534).
	MaxEntries = 0xFFFF

	headerLength      = 4 + 16 + 4
	entryFixedLength  = 2 + 16 + 4 + 4
	unauthCountLength = 4
)

// Entry is one runtime index assignment.
type Entry struct {
	Index uint16
	measurement.Key
}

// Cache is a bidirectional runtime index map for one connection.
// It is safe for concurrent use.
type Cache struct {
	mu           sync.RWMutex
	subscriberID uuid.UUID
	byIndex      map[uint16]measurement.Key
	bySignal     map[uuid.UUID]uint16
	unauthorized []uuid.UUID
}

// New returns an empty cache owned by subscriberID.
func New(subscriberID uuid.UUID) *Cache {
	return &Cache{
		subscriberID: subscriberID,
		byIndex:      make(map[uint16]measurement.Key),
		bySignal:     make(map[uuid.UUID]uint16),
	}
}

// Build assigns dense runtime indices to the requested keys the authorize
// function admits. Keys with an undefined signal id or denied by authorize are
// collected as unauthorized. Duplicate requests reuse the first assignment.
// A nil authorize admits every defined key.
func Build(subscriberID uuid.UUID, requested []measurement.Key, authorize func(uuid.UUID) bool) (*Cache, error) {
	c := New(subscriberID)

	var next uint16
	for _, key := range requested {
		if key.IsUndefined() || (authorize != nil && !authorize(key.SignalID)) {
			c.unauthorized = append(c.unauthorized, key.SignalID)
			continue
		}
		if _, dup := c.bySignal[key.SignalID]; dup {
			continue
		}
		if int(next) >= MaxEntries {
			return nil, fmt.Errorf("%d signals requested: %w", len(requested), errs.ErrIndexSpaceExhausted)
		}

		c.byIndex[next] = key
		c.bySignal[key.SignalID] = next
		next++
	}

	return c, nil
}

// SubscriberID returns the subscriber that owns the cache.
func (c *Cache) SubscriberID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.subscriberID
}

// Len returns the number of mapped signals.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.byIndex)
}

// Index returns the runtime index of signalID, or UnknownIndex when unmapped.
func (c *Cache) Index(signalID uuid.UUID) uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if idx, ok := c.bySignal[signalID]; ok {
		return idx
	}

	return UnknownIndex
}

// Signal returns the key mapped to index.
// It fails with errs.ErrSignalNotFound when the index is not part of this generation.
func (c *Cache) Signal(index uint16) (measurement.Key, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key, ok := c.byIndex[index]
	if !ok {
		return measurement.Key{}, fmt.Errorf("runtime index %d: %w", index, errs.ErrSignalNotFound)
	}

	return key, nil
}

// Entries returns all assignments ordered by runtime index.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.entriesLocked()
}

func (c *Cache) entriesLocked() []Entry {
	entries := make([]Entry, 0, len(c.byIndex))
	for idx, key := range c.byIndex {
		entries = append(entries, Entry{Index: idx, Key: key})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return int(a.Index) - int(b.Index) })

	return entries
}

// AuthorizedSignalIDs returns the mapped signal ids ordered by runtime index.
func (c *Cache) AuthorizedSignalIDs() []uuid.UUID {
	entries := c.Entries()
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.SignalID
	}

	return ids
}

// UnauthorizedSignalIDs returns the requested signals that were denied.
func (c *Cache) UnauthorizedSignalIDs() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.unauthorized)
}

// Rebind re-resolves every entry against local metadata by signal id and
// returns a new cache keeping the remote runtime indices. Entries lookup cannot
// resolve are dropped silently; the unauthorized list is carried over.
func (c *Cache) Rebind(lookup func(uuid.UUID) (measurement.Key, bool)) *Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := New(c.subscriberID)
	for idx, remote := range c.byIndex {
		local, ok := lookup(remote.SignalID)
		if !ok {
			continue
		}
		out.byIndex[idx] = local
		out.bySignal[local.SignalID] = idx
	}
	out.unauthorized = slices.Clone(c.unauthorized)

	return out
}

// BinaryLength returns the size of the serialized image.
func (c *Cache) BinaryLength() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.binaryLengthLocked()
}

func (c *Cache) binaryLengthLocked() int {
	n := headerLength + unauthCountLength + 16*len(c.unauthorized)
	for _, key := range c.byIndex {
		n += entryFixedLength + len(key.Source)
	}

	return n
}

// MarshalBinary serializes the cache image.
func (c *Cache) MarshalBinary() ([]byte, error) {
	return c.AppendBinary(nil)
}

// AppendBinary appends the cache image to dst. Entries are written in index order.
func (c *Cache) AppendBinary(dst []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	be := endian.GetBigEndianEngine()
	dst = slices.Grow(dst, c.binaryLengthLocked())

	dst = be.AppendUint32(dst, uint32(c.binaryLengthLocked())) //nolint:gosec
	dst = append(dst, c.subscriberID[:]...)
	dst = be.AppendUint32(dst, uint32(len(c.byIndex))) //nolint:gosec

	for _, e := range c.entriesLocked() {
		dst = be.AppendUint16(dst, e.Index)
		dst = append(dst, e.SignalID[:]...)
		dst = be.AppendUint32(dst, uint32(len(e.Source))) //nolint:gosec
		dst = append(dst, e.Source...)
		dst = be.AppendUint32(dst, e.ID)
	}

	dst = be.AppendUint32(dst, uint32(len(c.unauthorized))) //nolint:gosec
	for _, id := range c.unauthorized {
		dst = append(dst, id[:]...)
	}

	return dst, nil
}

// Parse replaces the cache contents with the image at the start of buf and
// returns the number of bytes consumed.
//
// A buffer shorter than the declared total length is not an error: Parse
// returns 0 and leaves the cache untouched so the caller can wait for more
// data. An image whose internal structure disagrees with its declared length
// fails with errs.ErrLengthMismatch, also without mutating the cache.
func (c *Cache) Parse(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, nil
	}

	be := endian.GetBigEndianEngine()
	total := int(be.Uint32(buf))
	if total > len(buf) {
		return 0, nil
	}
	if total < headerLength+unauthCountLength {
		return 0, fmt.Errorf("signal index cache length %d: %w", total, errs.ErrLengthMismatch)
	}

	img := buf[:total]
	pos := 4
	subscriberID := uuid.UUID(img[pos : pos+16])
	pos += 16
	count := int(be.Uint32(img[pos:]))
	pos += 4

	byIndex := make(map[uint16]measurement.Key, min(count, MaxEntries))
	bySignal := make(map[uuid.UUID]uint16, min(count, MaxEntries))

	for i := 0; i < count; i++ {
		if total-pos < entryFixedLength {
			return 0, fmt.Errorf("signal index cache entry %d: %w", i, errs.ErrLengthMismatch)
		}

		idx := be.Uint16(img[pos:])
		pos += 2
		signalID := uuid.UUID(img[pos : pos+16])
		pos += 16
		srcLen := int(be.Uint32(img[pos:]))
		pos += 4
		if srcLen < 0 || total-pos < srcLen+4 {
			return 0, fmt.Errorf("signal index cache entry %d source: %w", i, errs.ErrLengthMismatch)
		}
		source := string(img[pos : pos+srcLen])
		pos += srcLen
		id := be.Uint32(img[pos:])
		pos += 4

		byIndex[idx] = measurement.Key{SignalID: signalID, Source: source, ID: id}
		bySignal[signalID] = idx
	}

	if total-pos < unauthCountLength {
		return 0, fmt.Errorf("signal index cache unauthorized count: %w", errs.ErrLengthMismatch)
	}
	unauthCount := int(be.Uint32(img[pos:]))
	pos += 4
	if unauthCount < 0 || total-pos != 16*unauthCount {
		return 0, fmt.Errorf("signal index cache unauthorized ids: %w", errs.ErrLengthMismatch)
	}

	unauthorized := make([]uuid.UUID, unauthCount)
	for i := range unauthorized {
		unauthorized[i] = uuid.UUID(img[pos : pos+16])
		pos += 16
	}

	c.mu.Lock()
	c.subscriberID = subscriberID
	c.byIndex = byIndex
	c.bySignal = bySignal
	c.unauthorized = unauthorized
	c.mu.Unlock()

	return pos, nil
}

// Fingerprint identifies the cache generation: two caches with the same
// assignments and unauthorized set share a fingerprint.
func (c *Cache) Fingerprint() uint64 {
	img, _ := c.MarshalBinary()
	return hash.Bytes(img)
}
