package shuffle

import (
	"context"
	"fmt"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/logger"
	"mini-shuffle/internal/partition"
	"mini-shuffle/internal/storage"
	"mini-shuffle/internal/worker"
)

// Combiner mezcla dos valores de la misma clave.
//
// Tiene que ser asociativa y conmutativa: el orden en que llegan los valores de distintas
// particiones no está definido. No se verifica; con un combiner que no cumpla el
// contrato el resultado es incorrecto pero no falla.
type Combiner func(a, b any) any

// ==========================================
// 1. OPERACIONES POR CLAVE
// ==========================================

// ReduceByKey deja una entrada por clave, en la partición que indica p, con el
// plegado de combine sobre todos sus valores.
func (e *Executor) ReduceByKey(ctx context.Context, jobID string, in *storage.Dataset, p partition.Partitioner, combine Combiner) (*storage.Dataset, error) {
	if p == nil || combine == nil {
		return nil, fmt.Errorf("reduceByKey necesita particionador y combiner: %w", common.ErrInvalidArgument)
	}
	buckets, err := e.shuffleWrite(ctx, jobID, in, p, combine)
	if err != nil {
		return nil, err
	}
	return e.shuffleRead(ctx, jobID, buckets, p, func(store *storage.PartitionStore) []common.Entry {
		return combineByKey(store.Entries(), combine)
	})
}

// GroupByKey deja una entrada por clave con todos sus valores ([]any) en orden de llegada.
func (e *Executor) GroupByKey(ctx context.Context, jobID string, in *storage.Dataset, p partition.Partitioner) (*storage.Dataset, error) {
	if p == nil {
		return nil, fmt.Errorf("groupByKey necesita particionador: %w", common.ErrInvalidArgument)
	}
	buckets, err := e.shuffleWrite(ctx, jobID, in, p, nil)
	if err != nil {
		return nil, err
	}
	return e.shuffleRead(ctx, jobID, buckets, p, func(store *storage.PartitionStore) []common.Entry {
		keys := store.Keys()
		out := make([]common.Entry, len(keys))
		for i, k := range keys {
			out[i] = common.Entry{Key: k, Value: store.EntriesForKey(k)}
		}
		return out
	})
}

// PartitionBy reubica cada entrada en la partición que indica p, sin agrupar.
// Si in ya está co-particionado con p no hay shuffle y se devuelve in.
func (e *Executor) PartitionBy(ctx context.Context, jobID string, in *storage.Dataset, p partition.Partitioner) (*storage.Dataset, error) {
	if p == nil {
		return nil, fmt.Errorf("partitionBy necesita particionador: %w", common.ErrInvalidArgument)
	}
	if partition.CoPartitioned(in.Partitioner, p) {
		logger.Debug("Shuffle", "partitionBy: el dataset ya esta particionado con %s/%d, sin shuffle", p.Name(), p.NumPartitions())
		return in, nil
	}
	buckets, err := e.shuffleWrite(ctx, jobID, in, p, nil)
	if err != nil {
		return nil, err
	}
	return e.shuffleRead(ctx, jobID, buckets, p, func(store *storage.PartitionStore) []common.Entry {
		return store.Entries()
	})
}

// ==========================================
// 2. LADO MAP (reparto a buckets)
// ==========================================

// shuffleWrite corre una tarea por partición de in. Cada tarea calcula el destino de
// cada entrada y la deja en el bucket [origen][destino]. Con combine != nil los
// buckets se pre-combinan por clave antes de la barrera.
func (e *Executor) shuffleWrite(ctx context.Context, jobID string, in *storage.Dataset, p partition.Partitioner, combine Combiner) ([][]*storage.PartitionStore, error) {
	n := p.NumPartitions()
	buckets := make([][]*storage.PartitionStore, in.NumPartitions())

	_, err := e.runStage(ctx, jobID, common.StageTypeShuffleMap, allIndices(in.NumPartitions()), func(tc *worker.TaskContext, metrics *worker.Accumulator[common.StageMetrics]) error {
		src := tc.PartitionIndex()
		routed := make([][]common.Entry, n)
		var transferred int64

		for _, entry := range in.Partitions[src].Entries() {
			target, err := p.Partition(entry.Key)
			if err != nil {
				return fmt.Errorf("particionando clave de la particion %d: %w", src, err)
			}
			routed[target] = append(routed[target], entry)
		}

		out := make([]*storage.PartitionStore, n)
		metas := make([]common.ShuffleMeta, 0, n)
		var written int64
		for target, entries := range routed {
			if combine != nil {
				entries = combineByKey(entries, combine)
			}
			out[target] = storage.NewPartitionStoreFrom(target, entries)
			if target != src {
				transferred += int64(len(entries))
			}
			written += int64(len(entries))
			if len(entries) > 0 {
				metas = append(metas, common.ShuffleMeta{PartitionKey: target, Records: len(entries)})
			}
		}

		buckets[src] = out
		tc.ShuffleOutput = metas
		worker.Add(tc, metrics, common.StageMetrics{
			RecordsIn:          int64(in.Partitions[src].Len()),
			RecordsOut:         written,
			RecordsTransferred: transferred,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

// ==========================================
// 3. LADO REDUCE (lectura de buckets)
// ==========================================

// shuffleRead corre una tarea por partición destino: junta los buckets que le
// corresponden en orden de partición origen y aplica reduce.
func (e *Executor) shuffleRead(ctx context.Context, jobID string, buckets [][]*storage.PartitionStore, p partition.Partitioner, reduce func(*storage.PartitionStore) []common.Entry) (*storage.Dataset, error) {
	out, err := storage.NewDataset(p.NumPartitions(), p)
	if err != nil {
		return nil, err
	}

	_, err = e.runStage(ctx, jobID, common.StageTypeShuffleReduce, allIndices(p.NumPartitions()), func(tc *worker.TaskContext, metrics *worker.Accumulator[common.StageMetrics]) error {
		target := tc.PartitionIndex()
		merged := storage.NewPartitionStore(target)
		for _, fromSource := range buckets {
			merged = merged.Merge(fromSource[target])
		}
		entries := reduce(merged)
		out.Partitions[target] = storage.NewPartitionStoreFrom(target, entries)
		worker.Add(tc, metrics, common.StageMetrics{RecordsIn: int64(merged.Len()), RecordsOut: int64(len(entries))})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// combineByKey pliega los valores de cada clave en orden de llegada y devuelve una
// entrada por clave en orden de primera aparición.
func combineByKey(entries []common.Entry, combine Combiner) []common.Entry {
	if len(entries) == 0 {
		return nil
	}
	pos := make(map[any]int)
	out := make([]common.Entry, 0, len(entries))
	for _, entry := range entries {
		if i, ok := pos[entry.Key]; ok {
			out[i].Value = combine(out[i].Value, entry.Value)
			continue
		}
		pos[entry.Key] = len(out)
		out = append(out, entry)
	}
	return out
}
