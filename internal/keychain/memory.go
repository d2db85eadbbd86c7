package keychain

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryItem struct {
	entry Entry
	data  []byte
}

// MemoryStore is an in-memory implementation of Store for testing and for
// platforms without a system keychain. It can be locked and can deny access
// groups so callers can exercise the failure paths of a real keychain.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[Handle]*memoryItem
	refs   map[string]Handle
	locked bool
	denied map[string]bool
	now    func() time.Time
}

// NewMemoryStore creates a new in-memory secret store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[Handle]*memoryItem),
		refs:   make(map[string]Handle),
		denied: make(map[string]bool),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Lock makes every operation fail with ErrUnavailable until Unlock.
func (s *MemoryStore) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = true
}

func (s *MemoryStore) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
}

// DenyAccessGroup makes every operation on entries in group fail with
// ErrAccessDenied.
func (s *MemoryStore) DenyAccessGroup(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[group] = true
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) check(group string) error {
	if s.locked {
		return ErrUnavailable
	}
	if s.denied[group] {
		return fmt.Errorf("%w: access group %q", ErrAccessDenied, group)
	}
	return nil
}

func (s *MemoryStore) Add(_ context.Context, attrs Attributes, data []byte) (Entry, error) {
	if err := attrs.Validate(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(attrs.AccessGroup); err != nil {
		return Entry{}, err
	}
	key := attrs.Key()
	for _, it := range s.items {
		if it.entry.Matches(key) {
			return Entry{}, fmt.Errorf("%w: %s", ErrDuplicateItem, key)
		}
	}

	id := uuid.New()
	now := s.now()
	it := &memoryItem{
		entry: Entry{
			Attributes:    attrs.Clone(),
			Handle:        Handle(id.String()),
			PersistentRef: bytes.Clone(id[:]),
		},
		data: bytes.Clone(data),
	}
	it.entry.CreationDate = now
	it.entry.ModificationDate = now

	s.items[it.entry.Handle] = it
	s.refs[string(it.entry.PersistentRef)] = it.entry.Handle
	return copyEntry(it.entry), nil
}

func (s *MemoryStore) Update(_ context.Context, h Handle, diff Diff) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.lookup(h)
	if err != nil {
		return Entry{}, err
	}
	next := it.entry.Attributes.Clone()
	next.Apply(diff.Fields, diff.Attributes)
	if err := next.Validate(); err != nil {
		return Entry{}, err
	}

	it.entry.Attributes = next
	if diff.Fields.Has(FieldData) {
		it.data = bytes.Clone(diff.Data)
	}
	it.entry.ModificationDate = s.now()
	return copyEntry(it.entry), nil
}

func (s *MemoryStore) Delete(_ context.Context, h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.lookup(h)
	if err != nil {
		return err
	}
	delete(s.items, h)
	delete(s.refs, string(it.entry.PersistentRef))
	return nil
}

func (s *MemoryStore) Query(_ context.Context, key Key) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(key.AccessGroup); err != nil {
		return Entry{}, err
	}
	for _, it := range s.items {
		if it.entry.Matches(key) {
			return copyEntry(it.entry), nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
}

func (s *MemoryStore) QueryHandle(_ context.Context, h Handle) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.lookup(h)
	if err != nil {
		return Entry{}, err
	}
	return copyEntry(it.entry), nil
}

func (s *MemoryStore) QueryPersistent(ctx context.Context, ref []byte) (Entry, error) {
	s.mu.RLock()
	h, ok := s.refs[string(ref)]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, fmt.Errorf("%w: persistent ref %x", ErrNotFound, ref)
	}
	return s.QueryHandle(ctx, h)
}

func (s *MemoryStore) Secret(_ context.Context, h Handle) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(it.data), nil
}

func (s *MemoryStore) List(_ context.Context, class Class) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.locked {
		return nil, ErrUnavailable
	}
	entries := make([]Entry, 0, len(s.items))
	for _, it := range s.items {
		if class != 0 && it.entry.Class != class {
			continue
		}
		if s.denied[it.entry.AccessGroup] {
			continue
		}
		entries = append(entries, copyEntry(it.entry))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key().String() < entries[j].Key().String()
	})
	return entries, nil
}

// lookup resolves h and applies the lock and access-group checks. Callers
// must hold s.mu.
func (s *MemoryStore) lookup(h Handle) (*memoryItem, error) {
	if s.locked {
		return nil, ErrUnavailable
	}
	it, ok := s.items[h]
	if !ok {
		return nil, fmt.Errorf("%w: handle %s", ErrNotFound, h)
	}
	if err := s.check(it.entry.AccessGroup); err != nil {
		return nil, err
	}
	return it, nil
}

func copyEntry(e Entry) Entry {
	e.Attributes = e.Attributes.Clone()
	e.PersistentRef = bytes.Clone(e.PersistentRef)
	return e
}
