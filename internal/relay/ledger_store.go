package relay

// LedgerStore is the storage abstraction behind the retry Ledger.
// The Ledger serializes all access; implementations need not be safe for
// concurrent use.
type LedgerStore interface {
	Get(path string) (RetryRecord, bool)
	Set(path string, rec RetryRecord)
	Delete(path string)
	Paths() []string
}

// InMemoryLedgerStore is a map-backed LedgerStore. Records do not survive a
// restart.
type InMemoryLedgerStore struct {
	records map[string]RetryRecord
}

// NewInMemoryLedgerStore returns a new empty in-memory store.
func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		records: make(map[string]RetryRecord),
	}
}

// Get implements LedgerStore.Get.
func (s *InMemoryLedgerStore) Get(path string) (RetryRecord, bool) {
	rec, ok := s.records[path]
	return rec, ok
}

// Set implements LedgerStore.Set.
func (s *InMemoryLedgerStore) Set(path string, rec RetryRecord) {
	s.records[path] = rec
}

// Delete implements LedgerStore.Delete.
func (s *InMemoryLedgerStore) Delete(path string) {
	delete(s.records, path)
}

// Paths implements LedgerStore.Paths. Order is unspecified.
func (s *InMemoryLedgerStore) Paths() []string {
	paths := make([]string, 0, len(s.records))
	for p := range s.records {
		paths = append(paths, p)
	}
	return paths
}
