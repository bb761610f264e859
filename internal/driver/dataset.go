package driver

import (
	"context"
	"fmt"
	"strings"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/partition"
	"mini-shuffle/internal/pipe"
	"mini-shuffle/internal/shuffle"
	"mini-shuffle/internal/storage"
	"mini-shuffle/internal/worker"
)

type MapFunc func(common.Entry) (common.Entry, error)
type FlatMapFunc func(common.Entry) ([]common.Entry, error)
type FilterFunc func(common.Entry) bool
type ValueFunc func(any) (any, error)

// PartitionFunc recibe todas las entradas de una partición junto con el contexto de la
// tarea (acumuladores, broadcasts). No debe modificar in.
type PartitionFunc func(tc *worker.TaskContext, in []common.Entry) ([]common.Entry, error)

// Dataset es un paso del plan lazy. Las transformaciones sólo agregan nodos; nada se
// ejecuta hasta Collect, Take o Count.
type Dataset struct {
	sc   *Context
	node *planNode
}

func (sc *Context) newSource(op string, n int, err error, load shuffle.SourceFunc) *Dataset {
	return &Dataset{sc: sc, node: &planNode{op: op, kind: sourceNode, numPartitions: n, load: load, err: err}}
}

func (d *Dataset) narrow(op string, preserves bool, s step) *Dataset {
	return &Dataset{sc: d.sc, node: &planNode{
		op:        op,
		kind:      narrowNode,
		parents:   []*planNode{d.node},
		step:      s,
		preserves: preserves,
	}}
}

func (d *Dataset) wide(op string, err error, fn wideFunc, others ...*Dataset) *Dataset {
	parents := []*planNode{d.node}
	for _, o := range others {
		parents = append(parents, o.node)
	}
	return &Dataset{sc: d.sc, node: &planNode{op: op, kind: wideNode, parents: parents, wide: fn, err: err}}
}

// Context devuelve el contexto que creó el dataset.
func (d *Dataset) Context() *Context { return d.sc }

// Op es el nombre de la última transformación del plan.
func (d *Dataset) Op() string { return d.node.op }

// ==========================================
// 1. TRANSFORMACIONES ANGOSTAS
// ==========================================

func (d *Dataset) Map(fn MapFunc) *Dataset {
	return d.narrow("map", false, func(_ context.Context, _ *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		out := make([]common.Entry, len(in))
		for i, e := range in {
			r, err := fn(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	})
}

// MapValues es Map sin tocar las claves; conserva el particionador.
func (d *Dataset) MapValues(fn ValueFunc) *Dataset {
	return d.narrow("mapValues", true, func(_ context.Context, _ *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		out := make([]common.Entry, len(in))
		for i, e := range in {
			v, err := fn(e.Value)
			if err != nil {
				return nil, err
			}
			out[i] = common.Entry{Key: e.Key, Value: v}
		}
		return out, nil
	})
}

func (d *Dataset) Filter(fn FilterFunc) *Dataset {
	return d.narrow("filter", true, func(_ context.Context, _ *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		out := make([]common.Entry, 0, len(in))
		for _, e := range in {
			if fn(e) {
				out = append(out, e)
			}
		}
		return out, nil
	})
}

func (d *Dataset) FlatMap(fn FlatMapFunc) *Dataset {
	return d.narrow("flatMap", false, func(_ context.Context, _ *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		var out []common.Entry
		for _, e := range in {
			rs, err := fn(e)
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		return out, nil
	})
}

// MapPartitionsWithContext aplica fn a cada partición completa. preservesPartitioning
// promete que fn no cambia las claves.
func (d *Dataset) MapPartitionsWithContext(fn PartitionFunc, preservesPartitioning bool) *Dataset {
	return d.narrow("mapPartitions", preservesPartitioning, func(_ context.Context, tc *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		return fn(tc, in)
	})
}

// Pipe manda cada partición a un proceso externo (uno por partición) y parsea su
// salida. Las claves de entrada se conservan.
func (d *Dataset) Pipe(command []string, opts pipe.Options) *Dataset {
	timeout := d.sc.cfg.PipeTimeout
	return d.narrow("pipe", true, func(ctx context.Context, _ *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return pipe.Entries(ctx, command, in, opts)
	})
}

// ==========================================
// 2. TRANSFORMACIONES CON SHUFFLE
// ==========================================
// numPartitions == 0 reutiliza el particionador del input si tiene uno, y si no
// usa Config.DefaultPartitions.

func (d *Dataset) ReduceByKey(combine shuffle.Combiner, numPartitions int) *Dataset {
	sc := d.sc
	return d.wide("reduceByKey", nil, func(ctx context.Context, jobID string, in []*storage.Dataset) (*storage.Dataset, error) {
		p, err := sc.partitionerFor(numPartitions, in[0])
		if err != nil {
			return nil, err
		}
		return sc.exec.ReduceByKey(ctx, jobID, in[0], p, combine)
	})
}

func (d *Dataset) GroupByKey(numPartitions int) *Dataset {
	sc := d.sc
	return d.wide("groupByKey", nil, func(ctx context.Context, jobID string, in []*storage.Dataset) (*storage.Dataset, error) {
		p, err := sc.partitionerFor(numPartitions, in[0])
		if err != nil {
			return nil, err
		}
		return sc.exec.GroupByKey(ctx, jobID, in[0], p)
	})
}

// PartitionBy reparte por hash en numPartitions particiones.
func (d *Dataset) PartitionBy(numPartitions int) *Dataset {
	sc := d.sc
	return d.wide("partitionBy", nil, func(ctx context.Context, jobID string, in []*storage.Dataset) (*storage.Dataset, error) {
		n, err := sc.partitionsOrDefault(numPartitions)
		if err != nil {
			return nil, err
		}
		p, err := partition.NewHashPartitioner(n)
		if err != nil {
			return nil, err
		}
		return sc.exec.PartitionBy(ctx, jobID, in[0], p)
	})
}

// PartitionWith reparte con un particionador propio.
func (d *Dataset) PartitionWith(p partition.Partitioner) *Dataset {
	var err error
	if p == nil {
		err = fmt.Errorf("particionador nil: %w", common.ErrInvalidArgument)
	}
	sc := d.sc
	return d.wide("partitionBy", err, func(ctx context.Context, jobID string, in []*storage.Dataset) (*storage.Dataset, error) {
		return sc.exec.PartitionBy(ctx, jobID, in[0], p)
	})
}

// Join es el inner join por clave con other; el valor de salida es common.Pair.
// Si alguno de los lados ya está particionado se usa su particionador y ese lado
// no se reparte; numPartitions sólo se aplica cuando ninguno de los dos lo está
// (0 = default). Para forzar otro número, PartitionBy antes del join.
func (d *Dataset) Join(other *Dataset, numPartitions int) *Dataset {
	var err error
	if other == nil || other.sc != d.sc {
		err = fmt.Errorf("join entre datasets de distintos contextos: %w", common.ErrInvalidArgument)
	}
	sc := d.sc
	return d.wide("join", err, func(ctx context.Context, jobID string, in []*storage.Dataset) (*storage.Dataset, error) {
		fallback, err := sc.partitionerFor(numPartitions, nil)
		if err != nil {
			return nil, err
		}
		return sc.exec.Join(ctx, jobID, in[0], in[1], fallback)
	}, other)
}

// ==========================================
// 3. ACCIONES
// ==========================================

// Collect materializa el dataset completo, partición por partición en orden de índice.
func (d *Dataset) Collect(ctx context.Context) ([]common.Entry, error) {
	return d.CollectJob(ctx, "", nil)
}

// CollectJob es Collect dentro de un job con ID conocido (lo usa la API HTTP). Con
// jobID no vacío el resultado queda guardado en el JobStore. Si deliver no es nil
// recibe el resultado antes de marcar el job como terminado; si falla, falla el job.
func (d *Dataset) CollectJob(ctx context.Context, jobID string, deliver func(jobID string, entries []common.Entry) error) ([]common.Entry, error) {
	var out []common.Entry
	keep := jobID != ""
	err := d.sc.runJob(ctx, jobID, "collect:"+d.node.op, func(jobID string) error {
		ds, err := d.sc.materialize(ctx, jobID, d.node)
		if err != nil {
			return err
		}
		if limit := d.sc.cfg.MaxCollectEntries; limit > 0 && ds.Count() > limit {
			return fmt.Errorf("collect de %d entradas supera el límite %d: %w", ds.Count(), limit, common.ErrResultTooLarge)
		}
		out = ds.Entries()
		if deliver != nil {
			if err := deliver(jobID, out); err != nil {
				return err
			}
		}
		if !keep {
			return nil
		}
		return d.sc.jobs.SetResults(jobID, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count devuelve el total de entradas.
func (d *Dataset) Count(ctx context.Context) (int, error) {
	var count int
	err := d.sc.runJob(ctx, "", "count:"+d.node.op, func(jobID string) error {
		ds, err := d.sc.materialize(ctx, jobID, d.node)
		if err != nil {
			return err
		}
		count = ds.Count()
		return nil
	})
	return count, err
}

// Take devuelve hasta n entradas. Evalúa las particiones de a una, en orden de
// índice, y se detiene cuando junta n.
func (d *Dataset) Take(ctx context.Context, n int) ([]common.Entry, error) {
	if n < 0 {
		return nil, fmt.Errorf("take(%d): %w", n, common.ErrInvalidArgument)
	}
	if n == 0 {
		return []common.Entry{}, nil
	}
	// n puede ser mucho más grande que el dataset; no se reserva capacidad a partir de él.
	var out []common.Entry
	err := d.sc.runJob(ctx, "", "take:"+d.node.op, func(jobID string) error {
		if d.node.kind != narrowNode {
			ds, err := d.sc.materialize(ctx, jobID, d.node)
			if err != nil {
				return err
			}
			for _, p := range ds.Partitions {
				out = appendUpTo(out, p.Entries(), n)
				if len(out) == n {
					break
				}
			}
			return nil
		}

		base, steps, _, err := fuse(d.node)
		if err != nil {
			return err
		}
		in, err := d.sc.materialize(ctx, jobID, base)
		if err != nil {
			return err
		}
		fn := chain(ctx, steps)
		for i := 0; i < in.NumPartitions() && len(out) < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			parts, err := d.sc.exec.MapSomePartitions(ctx, jobID, in, []int{i}, fn)
			if err != nil {
				return err
			}
			out = appendUpTo(out, parts[0].Entries(), n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func appendUpTo(dst, src []common.Entry, n int) []common.Entry {
	need := min(n-len(dst), len(src))
	return append(dst, src[:need]...)
}

// Describe devuelve el plan como texto: d primero y sus dependencias indentadas debajo.
func (d *Dataset) Describe() string {
	var b strings.Builder
	var walk func(n *planNode, depth int)
	walk = func(n *planNode, depth int) {
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", depth), n.op)
		for _, p := range n.parents {
			walk(p, depth+1)
		}
	}
	walk(d.node, 0)
	return b.String()
}
