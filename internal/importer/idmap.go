package importer

import (
	"fmt"
	"sync"
)

// EntityType selects one of the three dictionaries in an IDMap.
type EntityType string

const (
	EntityUsers    EntityType = "users"
	EntityChannels EntityType = "channels"
	EntityMessages EntityType = "messages"
)

// IDMap translates source-native identifiers to internally-created ones.
// It is the only channel through which later stages learn the internal
// identity of entities created by earlier stages. Each key is write-once:
// binding the same source id twice for an entity type is a bug in the
// caller, not a condition to tolerate.
//
// An IDMap belongs to exactly one import run and is discarded with it.
type IDMap struct {
	mu       sync.Mutex
	users    map[string]string
	channels map[string]string
	messages map[string]string
}

// NewIDMap creates an empty mapping table.
func NewIDMap() *IDMap {
	return &IDMap{
		users:    make(map[string]string),
		channels: make(map[string]string),
		messages: make(map[string]string),
	}
}

// Bind records sourceID → internalID for the given entity type. It fails
// if sourceID is already bound, which guards against double-import bugs.
func (m *IDMap) Bind(entity EntityType, sourceID, internalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.table(entity)
	if err != nil {
		return err
	}
	if existing, ok := table[sourceID]; ok {
		return fmt.Errorf("%s id %q already bound to %q", entity, sourceID, existing)
	}
	table[sourceID] = internalID
	return nil
}

// Lookup returns the internal id bound to sourceID, if any. Absence is
// not an error here; callers decide whether an unresolved reference is a
// skip, a fallback, or a failure.
func (m *IDMap) Lookup(entity EntityType, sourceID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.table(entity)
	if err != nil {
		return "", false
	}
	id, ok := table[sourceID]
	return id, ok
}

// Len reports the number of bound ids for an entity type.
func (m *IDMap) Len(entity EntityType) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.table(entity)
	if err != nil {
		return 0
	}
	return len(table)
}

func (m *IDMap) table(entity EntityType) (map[string]string, error) {
	switch entity {
	case EntityUsers:
		return m.users, nil
	case EntityChannels:
		return m.channels, nil
	case EntityMessages:
		return m.messages, nil
	default:
		return nil, fmt.Errorf("unknown entity type %q", entity)
	}
}
