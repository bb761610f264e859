package shuffle

import (
	"context"
	"fmt"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/partition"
	"mini-shuffle/internal/storage"
	"mini-shuffle/internal/worker"
)

// PartitionFunc transforma una partición completa sin mirar las demás.
type PartitionFunc func(tc *worker.TaskContext, in *storage.PartitionStore) ([]common.Entry, error)

// SourceFunc produce el contenido inicial de una partición (lectura de archivo, slice, etc).
type SourceFunc func(tc *worker.TaskContext) ([]common.Entry, error)

// Load materializa un dataset fuente de n particiones, una tarea por partición.
func (e *Executor) Load(ctx context.Context, jobID string, n int, fn SourceFunc) (*storage.Dataset, error) {
	out, err := storage.NewDataset(n, nil)
	if err != nil {
		return nil, err
	}
	_, err = e.runStage(ctx, jobID, common.StageTypeNarrow, allIndices(n), func(tc *worker.TaskContext, metrics *worker.Accumulator[common.StageMetrics]) error {
		entries, err := fn(tc)
		if err != nil {
			return err
		}
		out.Partitions[tc.PartitionIndex()] = storage.NewPartitionStoreFrom(tc.PartitionIndex(), entries)
		worker.Add(tc, metrics, common.StageMetrics{RecordsOut: int64(len(entries))})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MapPartitions aplica fn a cada partición. Si preservesPartitioning, fn promete no
// cambiar las claves y el resultado conserva el particionador de in.
func (e *Executor) MapPartitions(ctx context.Context, jobID string, in *storage.Dataset, fn PartitionFunc, preservesPartitioning bool) (*storage.Dataset, error) {
	parts, err := e.MapSomePartitions(ctx, jobID, in, allIndices(in.NumPartitions()), fn)
	if err != nil {
		return nil, err
	}
	var p partition.Partitioner
	if preservesPartitioning {
		p = in.Partitioner
	}
	return &storage.Dataset{Partitions: parts, Partitioner: p}, nil
}

// MapSomePartitions aplica fn sólo a las particiones pedidas y devuelve los stores en el
// mismo orden que indices. Lo usa Take para evaluar de a pocas particiones.
func (e *Executor) MapSomePartitions(ctx context.Context, jobID string, in *storage.Dataset, indices []int, fn PartitionFunc) ([]*storage.PartitionStore, error) {
	pos := make(map[int]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= in.NumPartitions() {
			return nil, fmt.Errorf("particion %d fuera de rango [0, %d): %w", idx, in.NumPartitions(), common.ErrInvalidArgument)
		}
		pos[idx] = i
	}

	out := make([]*storage.PartitionStore, len(indices))
	_, err := e.runStage(ctx, jobID, common.StageTypeNarrow, indices, func(tc *worker.TaskContext, metrics *worker.Accumulator[common.StageMetrics]) error {
		src := in.Partitions[tc.PartitionIndex()]
		entries, err := fn(tc, src)
		if err != nil {
			return err
		}
		out[pos[tc.PartitionIndex()]] = storage.NewPartitionStoreFrom(tc.PartitionIndex(), entries)
		worker.Add(tc, metrics, common.StageMetrics{RecordsIn: int64(src.Len()), RecordsOut: int64(len(entries))})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
