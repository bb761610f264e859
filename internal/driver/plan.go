package driver

import (
	"context"
	"slices"
	"sync"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/shuffle"
	"mini-shuffle/internal/storage"
	"mini-shuffle/internal/worker"
)

type nodeKind int

const (
	sourceNode nodeKind = iota
	narrowNode
	wideNode
)

// step es una transformación angosta sobre las entradas de una partición.
// Los steps consecutivos se fusionan en una sola etapa.
type step func(ctx context.Context, tc *worker.TaskContext, in []common.Entry) ([]common.Entry, error)

// wideFunc materializa un nodo que depende de datasets completos (shuffle o join).
type wideFunc func(ctx context.Context, jobID string, inputs []*storage.Dataset) (*storage.Dataset, error)

// planNode es un paso del plan lazy. Las fuentes y los nodos con shuffle guardan su
// resultado la primera vez que se materializan; los angostos se recalculan.
type planNode struct {
	op      string
	kind    nodeKind
	parents []*planNode
	err     error // error de construcción, se reporta al ejecutar una acción

	// sourceNode
	numPartitions int
	load          shuffle.SourceFunc

	// narrowNode
	step      step
	preserves bool

	// wideNode
	wide wideFunc

	mu   sync.Mutex
	memo *storage.Dataset
}

// materialize evalúa n (y lo que haga falta de sus ancestros) dentro del job.
func (sc *Context) materialize(ctx context.Context, jobID string, n *planNode) (*storage.Dataset, error) {
	if n.kind == narrowNode {
		base, steps, preserves, err := fuse(n)
		if err != nil {
			return nil, err
		}
		in, err := sc.materialize(ctx, jobID, base)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return sc.exec.MapPartitions(ctx, jobID, in, chain(ctx, steps), preserves)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return nil, n.err
	}
	if n.memo != nil {
		return n.memo, nil
	}

	var out *storage.Dataset
	var err error
	switch n.kind {
	case sourceNode:
		if err = ctx.Err(); err == nil {
			out, err = sc.exec.Load(ctx, jobID, n.numPartitions, n.load)
		}
	case wideNode:
		inputs := make([]*storage.Dataset, len(n.parents))
		for i, p := range n.parents {
			if inputs[i], err = sc.materialize(ctx, jobID, p); err != nil {
				return nil, err
			}
		}
		if err = ctx.Err(); err == nil {
			out, err = n.wide(ctx, jobID, inputs)
		}
	}
	if err != nil {
		return nil, err
	}
	n.memo = out
	return out, nil
}

// fuse sube por la cadena de nodos angostos hasta la primera fuente o shuffle.
func fuse(n *planNode) (*planNode, []step, bool, error) {
	var steps []step
	preserves := true
	for n.kind == narrowNode {
		if n.err != nil {
			return nil, nil, false, n.err
		}
		steps = append(steps, n.step)
		preserves = preserves && n.preserves
		n = n.parents[0]
	}
	slices.Reverse(steps)
	return n, steps, preserves, nil
}

// chain compone los steps en una sola función de partición.
func chain(ctx context.Context, steps []step) shuffle.PartitionFunc {
	return func(tc *worker.TaskContext, in *storage.PartitionStore) ([]common.Entry, error) {
		entries := in.Entries()
		var err error
		for _, s := range steps {
			if entries, err = s(ctx, tc, entries); err != nil {
				return nil, err
			}
		}
		return entries, nil
	}
}
