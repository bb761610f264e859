package storage

import (
	"fmt"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/partition"
)

// Dataset es la forma materializada de un dataset: una partición por índice y,
// si sus claves están ubicadas por un particionador, ese particionador.
type Dataset struct {
	Partitions  []*PartitionStore
	Partitioner partition.Partitioner // nil si la ubicación de las claves es arbitraria
}

// NewDataset crea un dataset vacío de n particiones.
func NewDataset(n int, p partition.Partitioner) (*Dataset, error) {
	if n <= 0 {
		return nil, fmt.Errorf("el numero de particiones debe ser mayor a cero (%d): %w", n, common.ErrInvalidArgument)
	}
	if p != nil && p.NumPartitions() != n {
		return nil, fmt.Errorf("particionador de %d particiones para un dataset de %d: %w", p.NumPartitions(), n, common.ErrInvalidArgument)
	}
	parts := make([]*PartitionStore, n)
	for i := range parts {
		parts[i] = NewPartitionStore(i)
	}
	return &Dataset{Partitions: parts, Partitioner: p}, nil
}

func (d *Dataset) NumPartitions() int { return len(d.Partitions) }

// Count suma las entradas de todas las particiones.
func (d *Dataset) Count() int {
	total := 0
	for _, p := range d.Partitions {
		total += p.Len()
	}
	return total
}

// Entries concatena las particiones en orden de índice.
func (d *Dataset) Entries() []common.Entry {
	out := make([]common.Entry, 0, d.Count())
	for _, p := range d.Partitions {
		out = append(out, p.Entries()...)
	}
	return out
}

// CheckPlacement verifica la invariante de ubicación: cada entrada de la partición p
// tiene Partitioner.Partition(key) == p. Sin particionador no hay nada que verificar.
func (d *Dataset) CheckPlacement() error {
	if d.Partitioner == nil {
		return nil
	}
	for _, part := range d.Partitions {
		for _, e := range part.Entries() {
			target, err := d.Partitioner.Partition(e.Key)
			if err != nil {
				return err
			}
			if target != part.Index() {
				return fmt.Errorf("clave %v en particion %d, deberia estar en %d", e.Key, part.Index(), target)
			}
		}
	}
	return nil
}
