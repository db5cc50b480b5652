package objection

import "sync"

// Ledger is the in-process objection history cache, keyed by contact id.
// It is append-only and exists to answer two questions cheaply: how many
// objections has this contact raised, and how many times this particular
// one. The conversation store remains the system of record; a fresh process
// repopulates per contact on first use.
type Ledger struct {
	mu       sync.Mutex
	observed map[string][]Category
	loaded   map[string]bool
}

func NewLedger() *Ledger {
	return &Ledger{
		observed: map[string][]Category{},
		loaded:   map[string]bool{},
	}
}

// Loaded reports whether the contact's persisted history has been pulled
// into the cache this process lifetime.
func (l *Ledger) Loaded(contactID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[contactID]
}

// Seed replaces the contact's cached history with the persisted one and
// marks it loaded.
func (l *Ledger) Seed(contactID string, categories []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := make([]Category, 0, len(categories))
	for _, category := range categories {
		items = append(items, Category(category))
	}
	l.observed[contactID] = items
	l.loaded[contactID] = true
}

// Observe appends one objection to the cache.
func (l *Ledger) Observe(contactID string, category Category) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observed[contactID] = append(l.observed[contactID], category)
	l.loaded[contactID] = true
}

// Counts returns the total objections observed for the contact and how many
// of them were the given category.
func (l *Ledger) Counts(contactID string, category Category) (total, same int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, observed := range l.observed[contactID] {
		total++
		if observed == category {
			same++
		}
	}
	return total, same
}
