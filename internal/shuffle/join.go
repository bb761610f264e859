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

// Join hace el inner join por clave de left y right. El valor de cada salida es
// common.Pair{Left, Right}; las claves que no están en ambos lados no aparecen.
//
// Si los dos lados están co-particionados el join es local, sin shuffle. Si sólo uno
// está particionado, el otro se reparte con su particionador. Si ninguno lo está,
// ambos se reparten con fallback.
func (e *Executor) Join(ctx context.Context, jobID string, left, right *storage.Dataset, fallback partition.Partitioner) (*storage.Dataset, error) {
	target, err := joinPartitioner(left, right, fallback)
	if err != nil {
		return nil, err
	}

	if left.Count() == 0 || right.Count() == 0 {
		return storage.NewDataset(target.NumPartitions(), target)
	}

	if !partition.CoPartitioned(left.Partitioner, target) {
		if left, err = e.PartitionBy(ctx, jobID, left, target); err != nil {
			return nil, err
		}
	}
	if !partition.CoPartitioned(right.Partitioner, target) {
		if right, err = e.PartitionBy(ctx, jobID, right, target); err != nil {
			return nil, err
		}
	} else {
		logger.Debug("Shuffle", "join: lado derecho ya co-particionado, sin shuffle")
	}
	return e.localJoin(ctx, jobID, left, right)
}

func joinPartitioner(left, right *storage.Dataset, fallback partition.Partitioner) (partition.Partitioner, error) {
	switch {
	case left.Partitioner != nil:
		return left.Partitioner, nil
	case right.Partitioner != nil:
		return right.Partitioner, nil
	case fallback != nil:
		return fallback, nil
	default:
		return nil, fmt.Errorf("join sin particionador para repartir: %w", common.ErrInvalidArgument)
	}
}

// localJoin une partición i de left con partición i de right. Exige el mismo número
// de particiones en ambos lados.
func (e *Executor) localJoin(ctx context.Context, jobID string, left, right *storage.Dataset) (*storage.Dataset, error) {
	if left.NumPartitions() != right.NumPartitions() {
		return nil, fmt.Errorf("join local con %d y %d particiones: %w", left.NumPartitions(), right.NumPartitions(), common.ErrInvalidArgument)
	}
	out, err := storage.NewDataset(left.NumPartitions(), left.Partitioner)
	if err != nil {
		return nil, err
	}

	_, err = e.runStage(ctx, jobID, common.StageTypeJoin, allIndices(left.NumPartitions()), func(tc *worker.TaskContext, metrics *worker.Accumulator[common.StageMetrics]) error {
		i := tc.PartitionIndex()
		entries := JoinPartition(left.Partitions[i], right.Partitions[i])
		out.Partitions[i] = storage.NewPartitionStoreFrom(i, entries)
		worker.Add(tc, metrics, common.StageMetrics{
			RecordsIn:  int64(left.Partitions[i].Len() + right.Partitions[i].Len()),
			RecordsOut: int64(len(entries)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// JoinPartition es el hash join de una partición: indexa right por clave y recorre left
// en orden, emitiendo una salida por cada combinación de valores con la misma clave.
func JoinPartition(left, right *storage.PartitionStore) []common.Entry {
	var out []common.Entry
	for _, l := range left.Entries() {
		for _, r := range right.EntriesForKey(l.Key) {
			out = append(out, common.Entry{Key: l.Key, Value: common.Pair{Left: l.Value, Right: r}})
		}
	}
	return out
}
