package storage

import (
	"slices"
	"sync"

	"mini-shuffle/internal/common"
)

// PartitionStore guarda las entradas de un índice de partición en orden de llegada.
// Se llena con Append mientras se construye y a partir de ahí se trata como inmutable.
type PartitionStore struct {
	index   int
	entries []common.Entry

	// Índice clave -> posiciones, construido la primera vez que se consulta por clave.
	mu    sync.Mutex
	byKey map[any][]int
	keys  []any
}

func NewPartitionStore(index int) *PartitionStore {
	return &PartitionStore{index: index}
}

// NewPartitionStoreFrom crea un store con una copia de entries.
func NewPartitionStoreFrom(index int, entries []common.Entry) *PartitionStore {
	return &PartitionStore{index: index, entries: slices.Clone(entries)}
}

func (p *PartitionStore) Index() int { return p.index }

func (p *PartitionStore) Len() int { return len(p.entries) }

// Append agrega las entradas preservando el orden de la llamada.
func (p *PartitionStore) Append(entries ...common.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entries...)
	p.byKey = nil
	p.keys = nil
}

// Entries devuelve las entradas en orden. El slice no se debe modificar.
func (p *PartitionStore) Entries() []common.Entry {
	return p.entries
}

// Merge concatena: primero las entradas del receptor, después las de other.
// Asociativa pero no conmutativa en el orden resultante.
func (p *PartitionStore) Merge(other *PartitionStore) *PartitionStore {
	merged := &PartitionStore{
		index:   p.index,
		entries: make([]common.Entry, 0, p.Len()+other.Len()),
	}
	merged.entries = append(merged.entries, p.entries...)
	merged.entries = append(merged.entries, other.entries...)
	return merged
}

// EntriesForKey devuelve los valores de key en orden de llegada.
// La primera llamada indexa el store; las siguientes son O(1) amortizado.
func (p *PartitionStore) EntriesForKey(key any) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buildIndexLocked()

	positions := p.byKey[key]
	values := make([]any, len(positions))
	for i, pos := range positions {
		values[i] = p.entries[pos].Value
	}
	return values
}

// Keys devuelve las claves distintas en orden de primera aparición.
func (p *PartitionStore) Keys() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buildIndexLocked()
	return slices.Clone(p.keys)
}

func (p *PartitionStore) buildIndexLocked() {
	if p.byKey != nil {
		return
	}
	p.byKey = make(map[any][]int)
	p.keys = p.keys[:0]
	for i, e := range p.entries {
		if _, seen := p.byKey[e.Key]; !seen {
			p.keys = append(p.keys, e.Key)
		}
		p.byKey[e.Key] = append(p.byKey[e.Key], i)
	}
}
