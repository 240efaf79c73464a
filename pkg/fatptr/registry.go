package fatptr

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// tableKey identifies one dispatch table: an interface handle and the
// concrete type bound into its trampolines.
type tableKey struct {
	iface *Interface
	typ   reflect.Type
}

// tableSlot holds a table for one key. The slot is published in the
// registry before the table is built; once guarantees a single build even
// when several goroutines discover the key at the same time.
type tableSlot struct {
	once  sync.Once
	table any

	// failure is the panic value of a build that did not complete.
	failure any
}

// tableRegistry is the process-wide dispatch table cache.
//
// Write-once per key: a slot is inserted at most once and its table is set
// at most once, after which both are only read. Entries are never evicted.
var tableRegistry = struct {
	mu    sync.RWMutex
	slots map[tableKey]*tableSlot

	built   atomic.Uint64
	lookups atomic.Uint64
}{
	slots: make(map[tableKey]*tableSlot),
}

// Intern returns the dispatch table for (iface, T), calling build to create
// it on first request. Every later request for the same pair, from any
// goroutine, returns the same pointer, so two wrappers hold equal table
// pointers exactly when they wrap the same concrete type.
//
// build must be a pure function of (iface, T): the first caller's build
// result is the one published. A build that panics or returns nil is not
// retried: the panic propagates to its caller and every later request for
// the pair panics with a message naming the original failure.
func Intern[T, Tab any](iface *Interface, build func() *Tab) *Tab {
	if iface == nil {
		panic("fatptr: Intern called with nil interface")
	}

	key := tableKey{iface: iface, typ: reflect.TypeFor[T]()}
	tableRegistry.lookups.Add(1)

	slot := lookupSlot(key)
	slot.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				slot.failure = r
				panic(r)
			}
		}()
		tab := build()
		if tab == nil {
			panic(fmt.Sprintf("fatptr: build for %s/%s returned nil", iface.Name(), key.typ))
		}
		slot.table = tab
		tableRegistry.built.Add(1)
		Logger().Debug("dispatch table built",
			zap.String("interface", iface.Name()),
			zap.Stringer("type", key.typ),
			zap.Int("slots", iface.NumMethods()))
	})

	if slot.table == nil {
		panic(fmt.Sprintf("fatptr: table for %s/%s is unavailable: build failed: %v",
			iface.Name(), key.typ, slot.failure))
	}
	tab, ok := slot.table.(*Tab)
	if !ok {
		panic(fmt.Sprintf("fatptr: table for %s/%s has type %T, requested %s",
			iface.Name(), key.typ, slot.table, reflect.TypeFor[*Tab]()))
	}
	return tab
}

func lookupSlot(key tableKey) *tableSlot {
	tableRegistry.mu.RLock()
	slot, ok := tableRegistry.slots[key]
	tableRegistry.mu.RUnlock()
	if ok {
		return slot
	}

	tableRegistry.mu.Lock()
	defer tableRegistry.mu.Unlock()
	if slot, ok := tableRegistry.slots[key]; ok {
		return slot
	}
	slot = &tableSlot{}
	tableRegistry.slots[key] = slot
	return slot
}

// Stats summarises registry activity.
type Stats struct {
	// Tables is the number of interned (interface, type) pairs.
	Tables int
	// Built counts completed builds; it equals Tables unless the registry
	// was reset or a build failed.
	Built uint64
	// Lookups counts Intern calls.
	Lookups uint64
}

// RegistryStats returns a snapshot of the registry counters.
func RegistryStats() Stats {
	tableRegistry.mu.RLock()
	n := len(tableRegistry.slots)
	tableRegistry.mu.RUnlock()
	return Stats{
		Tables:  n,
		Built:   tableRegistry.built.Load(),
		Lookups: tableRegistry.lookups.Load(),
	}
}

// Entry is one interned (interface, type) pair.
type Entry struct {
	Interface string
	Type      reflect.Type
}

// Tables returns the interned pairs, sorted by interface then type name.
// Intended for diagnostics.
func Tables() []Entry {
	tableRegistry.mu.RLock()
	entries := make([]Entry, 0, len(tableRegistry.slots))
	for key := range tableRegistry.slots {
		entries = append(entries, Entry{Interface: key.iface.Name(), Type: key.typ})
	}
	tableRegistry.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Interface != entries[j].Interface {
			return entries[i].Interface < entries[j].Interface
		}
		return entries[i].Type.String() < entries[j].Type.String()
	})
	return entries
}

// ResetForTesting drops every interned table and zeroes the counters.
// Wrappers created before the reset keep their tables; identity between
// wrappers created before and after a reset is not preserved.
// Used for testing.
func ResetForTesting() {
	tableRegistry.mu.Lock()
	defer tableRegistry.mu.Unlock()
	tableRegistry.slots = make(map[tableKey]*tableSlot)
	tableRegistry.built.Store(0)
	tableRegistry.lookups.Store(0)
}
