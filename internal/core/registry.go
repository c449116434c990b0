package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// KindDefinition describes one importable record kind.
type KindDefinition struct {
	Kind  RecordKind
	Label string

	// Columns is the header layout used by templates and exports.
	Columns []string

	// ContainerParam names the request field holding the target container.
	ContainerParam string
	// ContainerRequired rejects requests that omit the container.
	ContainerRequired bool

	// process validates, resolves and writes one row.
	process rowHandler
}

// rowHandler takes one row through validation, resolution and the sink.
type rowHandler func(ctx context.Context, run *importRun, row Row)

var (
	registry   = make(map[RecordKind]KindDefinition)
	registryMu sync.RWMutex
)

// Register adds a kind definition. Panics if the kind is already registered.
func Register(def KindDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Kind]; exists {
		panic(fmt.Sprintf("record kind already registered: %s", def.Kind))
	}
	registry[def.Kind] = def
}

// Lookup returns the definition for kind.
func Lookup(kind RecordKind) (KindDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// Kinds returns every registered definition ordered by kind.
func Kinds() []KindDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]KindDefinition, 0, len(registry))
	for _, def := range registry {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
