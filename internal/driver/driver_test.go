package driver

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/config"
	"mini-shuffle/internal/pipe"
	"mini-shuffle/internal/worker"
)

func kv(k, v any) common.Entry { return common.Entry{Key: k, Value: v} }

func sumInts(a, b any) any { return a.(int) + b.(int) }

func newTestContext(t *testing.T, partitions int) *Context {
	t.Helper()
	cfg := config.Default()
	cfg.MaxWorkers = 4
	cfg.DefaultPartitions = partitions
	sc, err := NewContext(cfg)
	require.NoError(t, err)
	return sc
}

func asMap(entries []common.Entry) map[any]any {
	m := make(map[any]any, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	return m
}

func numbered(n int) []common.Entry {
	out := make([]common.Entry, n)
	for i := range out {
		out[i] = kv(fmt.Sprintf("k%d", i), i)
	}
	return out
}

func lastJob(t *testing.T, sc *Context) common.JobStatus {
	t.Helper()
	ids := sc.Jobs().ListJobs()
	require.NotEmpty(t, ids)
	job, err := sc.Jobs().GetJob(ids[len(ids)-1])
	require.NoError(t, err)
	return job
}

func TestReduceByKey_ConcreteScenario(t *testing.T) {
	sc := newTestContext(t, 2)
	orders := [][]common.Entry{
		{kv("a", 1), kv("b", 2), kv("a", 3)},
		{kv("a", 3), kv("a", 1), kv("b", 2)},
		{kv("b", 2), kv("a", 3), kv("a", 1)},
	}
	for i, input := range orders {
		t.Run(fmt.Sprintf("Orden_%d", i), func(t *testing.T) {
			out, err := sc.Parallelize(input, 2).ReduceByKey(sumInts, 2).Collect(context.Background())
			require.NoError(t, err)
			assert.Len(t, out, 2)
			assert.Equal(t, map[any]any{"a": 4, "b": 2}, asMap(out))
		})
	}
}

func TestReduceByKey_PlacementAndFold(t *testing.T) {
	sc := newTestContext(t, 4)
	var input []common.Entry
	want := map[any]any{}
	for i := 0; i < 200; i++ {
		k := fmt.Sprintf("w%d", i%13)
		input = append(input, kv(k, i))
		if prev, ok := want[k]; ok {
			want[k] = prev.(int) + i
		} else {
			want[k] = i
		}
	}

	reduced := sc.Parallelize(input, 5).ReduceByKey(sumInts, 3)
	ds, err := sc.materialize(context.Background(), "", reduced.node)
	require.NoError(t, err)
	require.NoError(t, ds.CheckPlacement())
	assert.Equal(t, 3, ds.NumPartitions())
	assert.Equal(t, len(want), ds.Count(), "una entrada por clave")
	assert.Equal(t, want, asMap(ds.Entries()))
}

func TestJoin_ConcreteScenario(t *testing.T) {
	sc := newTestContext(t, 2)
	left := sc.Parallelize([]common.Entry{kv("x", 1), kv("y", 2)}, 2)
	right := sc.Parallelize([]common.Entry{kv("x", "A")}, 1)

	out, err := left.Join(right, 2).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Entry{kv("x", common.Pair{Left: 1, Right: "A"})}, out)
}

func TestJoin_CoPartitionedEqualsShuffled(t *testing.T) {
	sc := newTestContext(t, 4)
	ctx := context.Background()
	var lefts, rights []common.Entry
	for i := 0; i < 21; i++ {
		lefts = append(lefts, kv(fmt.Sprintf("k%d", i%7), i))
	}
	for i := 0; i < 10; i++ {
		rights = append(rights, kv(fmt.Sprintf("k%d", i%5), fmt.Sprintf("r%d", i)))
	}

	shuffled, err := sc.Parallelize(lefts, 3).Join(sc.Parallelize(rights, 2), 4).Collect(ctx)
	require.NoError(t, err)

	left := sc.Parallelize(lefts, 3).PartitionBy(4)
	right := sc.Parallelize(rights, 2).PartitionBy(4)
	_, err = left.Count(ctx)
	require.NoError(t, err)
	_, err = right.Count(ctx)
	require.NoError(t, err)

	local, err := left.Join(right, 0).CollectJob(ctx, "join-copart", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, shuffled, local)
	// 5 claves comunes: k0..k4, 3 valores por lado izquierdo y 2 por derecho
	assert.Len(t, local, 5*3*2)

	job, err := sc.Jobs().GetJob("join-copart")
	require.NoError(t, err)
	require.Len(t, job.Stages, 1, "los lados ya estaban particionados: sólo la etapa de join")
	assert.Equal(t, common.StageTypeJoin, job.Stages[0].StageType)
}

func TestJoin_PreservedPartitioningAvoidsShuffle(t *testing.T) {
	sc := newTestContext(t, 4)
	ctx := context.Background()
	left := sc.Parallelize(numbered(12), 3).PartitionBy(4)
	right := sc.Parallelize(numbered(12), 2).PartitionBy(4)
	_, err := left.Count(ctx)
	require.NoError(t, err)
	_, err = right.Count(ctx)
	require.NoError(t, err)

	doubled := left.MapValues(func(v any) (any, error) { return v.(int) * 2, nil })
	out, err := doubled.Join(right, 0).CollectJob(ctx, "join-mapvalues", nil)
	require.NoError(t, err)
	assert.Len(t, out, 12)
	for _, e := range out {
		pair := e.Value.(common.Pair)
		assert.Equal(t, pair.Right.(int)*2, pair.Left)
	}

	job, err := sc.Jobs().GetJob("join-mapvalues")
	require.NoError(t, err)
	for _, st := range job.Stages {
		assert.NotEqual(t, common.StageTypeShuffleMap, st.StageType)
	}
}

func TestJoin_ExistingPartitionerWinsOverNumPartitions(t *testing.T) {
	sc := newTestContext(t, 4)
	ctx := context.Background()
	left := sc.Parallelize(numbered(6), 2).PartitionBy(3)
	right := sc.Parallelize(numbered(6), 2)

	tasks := worker.NewCounter("tareas")
	joined := left.Join(right, 7).MapPartitionsWithContext(func(tc *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		worker.Add(tc, tasks, int64(1))
		return in, nil
	}, true)

	n, err := joined.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, int64(3), tasks.Value(), "el join usa las 3 particiones del lado izquierdo")

	tasks.Reset()
	_, err = sc.Parallelize(numbered(6), 2).Join(right, 7).MapPartitionsWithContext(func(tc *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		worker.Add(tc, tasks, int64(1))
		return in, nil
	}, true).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), tasks.Value(), "sin particionador previo se usa numPartitions")
}

func TestTake_Bounds(t *testing.T) {
	sc := newTestContext(t, 4)
	ctx := context.Background()
	ds := sc.Parallelize(numbered(20), 4).Map(func(e common.Entry) (common.Entry, error) {
		return kv(e.Key, e.Value.(int)+1), nil
	})
	all, err := ds.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, all, 20)

	for _, n := range []int{0, 1, 5, 19, 20, 25} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			got, err := ds.Take(ctx, n)
			require.NoError(t, err)
			want := min(n, 20)
			assert.Len(t, got, want)
			assert.Equal(t, all[:want], got, "prefijo de collect")
		})
	}

	got, err := ds.Take(ctx, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, all, got)

	shuffled, err := sc.Parallelize(numbered(3), 2).PartitionBy(2).Take(ctx, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, shuffled, 3)

	_, err = ds.Take(ctx, -1)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestTake_EvaluatesOnlyNeededPartitions(t *testing.T) {
	sc := newTestContext(t, 4)
	evaluated := worker.NewCounter("particiones")
	ds := sc.Parallelize(numbered(20), 4).MapPartitionsWithContext(func(tc *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		worker.Add(tc, evaluated, int64(1))
		return in, nil
	}, true)

	got, err := ds.Take(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, int64(1), evaluated.Value())

	evaluated.Reset()
	got, err = ds.Take(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, got, 7)
	assert.Equal(t, int64(2), evaluated.Value())
}

func TestTake_AfterShuffle(t *testing.T) {
	sc := newTestContext(t, 4)
	got, err := sc.Parallelize(numbered(10), 2).PartitionBy(3).Take(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestCollect_Limit(t *testing.T) {
	cfg := config.Default()
	cfg.MaxWorkers = 2
	cfg.DefaultPartitions = 2
	cfg.MaxCollectEntries = 5
	sc, err := NewContext(cfg)
	require.NoError(t, err)

	_, err = sc.Parallelize(numbered(10), 2).Collect(context.Background())
	assert.ErrorIs(t, err, common.ErrResultTooLarge)
	job := lastJob(t, sc)
	assert.Equal(t, common.JobStatusFailed, job.Status)
	assert.NotEmpty(t, job.ErrorMsg)

	out, err := sc.Parallelize(numbered(5), 2).Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 5)
}

func TestJobHistoryIsBounded(t *testing.T) {
	cfg := config.Default()
	cfg.MaxWorkers = 2
	cfg.DefaultPartitions = 2
	cfg.JobHistory = 3
	sc, err := NewContext(cfg)
	require.NoError(t, err)

	ds := sc.Parallelize(numbered(8), 2).ReduceByKey(sumInts, 2)
	for i := 0; i < 20; i++ {
		_, err := ds.Map(func(e common.Entry) (common.Entry, error) { return e, nil }).Collect(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, sc.Jobs().ListJobs(), 3)
	// 3 jobs, cada uno con a lo sumo una etapa narrow de 2 tareas.
	assert.LessOrEqual(t, len(sc.Jobs().TaskReports), 3*2)
}

func TestCount(t *testing.T) {
	sc := newTestContext(t, 4)
	n, err := sc.Parallelize(numbered(30), 4).
		Filter(func(e common.Entry) bool { return e.Value.(int)%3 == 0 }).
		Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, common.JobStatusSucceeded, lastJob(t, sc).Status)
}

func TestShuffleOutputIsMemoized(t *testing.T) {
	sc := newTestContext(t, 4)
	ctx := context.Background()
	parted := sc.Parallelize(numbered(16), 2).PartitionBy(4)

	n, err := parted.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.NotEmpty(t, lastJob(t, sc).Stages)

	n, err = parted.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Empty(t, lastJob(t, sc).Stages, "la segunda acción reutiliza el resultado")
}

func TestNarrowChainIsOneStage(t *testing.T) {
	sc := newTestContext(t, 2)
	ctx := context.Background()
	src := sc.Parallelize(numbered(10), 2)
	_, err := src.Count(ctx)
	require.NoError(t, err)

	out, err := src.
		Map(func(e common.Entry) (common.Entry, error) { return kv(e.Key, e.Value.(int)*10), nil }).
		Filter(func(e common.Entry) bool { return e.Value.(int) >= 50 }).
		FlatMap(func(e common.Entry) ([]common.Entry, error) { return []common.Entry{e, e}, nil }).
		Collect(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 10)

	job := lastJob(t, sc)
	require.Len(t, job.Stages, 1)
	assert.Equal(t, common.StageTypeNarrow, job.Stages[0].StageType)
}

func TestErrors(t *testing.T) {
	sc := newTestContext(t, 2)
	ctx := context.Background()

	tests := []struct {
		name    string
		ds      *Dataset
		wantErr error
	}{
		{name: "Particiones negativas en la fuente", ds: sc.Parallelize(numbered(3), -1), wantErr: common.ErrInvalidArgument},
		{name: "Particiones negativas en reduce", ds: sc.Parallelize(numbered(3), 2).ReduceByKey(sumInts, -2), wantErr: common.ErrInvalidArgument},
		{name: "Particionador nil", ds: sc.Parallelize(numbered(3), 2).PartitionWith(nil), wantErr: common.ErrInvalidArgument},
		{name: "Clave no hasheable", ds: sc.Parallelize([]common.Entry{kv([]int{1}, 1)}, 1).GroupByKey(2), wantErr: common.ErrKeyNotHashable},
		{name: "Join entre contextos", ds: sc.Parallelize(numbered(3), 2).Join(newTestContext(t, 2).Parallelize(numbered(3), 2), 2), wantErr: common.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.ds.Collect(ctx)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, common.JobStatusFailed, lastJob(t, sc).Status)
		})
	}
}

func TestCancelledContext(t *testing.T) {
	sc := newTestContext(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sc.Parallelize(numbered(10), 2).ReduceByKey(sumInts, 2).Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, common.JobStatusFailed, lastJob(t, sc).Status)
}

func TestUDFErrorFailsJob(t *testing.T) {
	sc := newTestContext(t, 2)
	_, err := sc.Parallelize(numbered(10), 2).Map(func(e common.Entry) (common.Entry, error) {
		if e.Value.(int) == 7 {
			return e, fmt.Errorf("valor prohibido")
		}
		return e, nil
	}).Collect(context.Background())
	assert.ErrorContains(t, err, "valor prohibido")
}

func TestTextFile_WordCount(t *testing.T) {
	sc := newTestContext(t, 3)
	path := filepath.Join(t.TempDir(), "input.txt")
	content := "gato perro\nperro\n\ngato gato raton\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lines, err := sc.TextFile(path, 3).Collect(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []common.Entry{kv(0, "gato perro"), kv(1, "perro"), kv(2, ""), kv(3, "gato gato raton")}, lines)

	counts, err := sc.TextFile(path, 3).
		FlatMap(func(e common.Entry) ([]common.Entry, error) {
			var out []common.Entry
			for _, w := range strings.Fields(e.Value.(string)) {
				out = append(out, kv(w, 1))
			}
			return out, nil
		}).
		ReduceByKey(sumInts, 2).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[any]any{"gato": 3, "perro": 2, "raton": 1}, asMap(counts))

	_, err = sc.TextFile(filepath.Join(t.TempDir(), "no-existe"), 2).Count(context.Background())
	assert.Error(t, err)
}

func TestPipe(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh no disponible")
	}
	sumOfSquares := []string{"sh", "-c", `while read line; do s=0; for n in $line; do s=$((s + n * n)); done; echo $s; done`}
	sc := newTestContext(t, 2)

	out, err := sc.Parallelize([]common.Entry{kv("a", "1 2 3"), kv("b", "4 5")}, 1).
		Pipe(sumOfSquares, pipe.Options{}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Entry{kv("a", "14"), kv("b", "41")}, out)

	numbers, err := sc.Parallelize([]common.Entry{kv("a", []int{1, 2, 3}), kv("b", []int{4, 5})}, 2).
		Pipe(sumOfSquares, pipe.Options{Parse: pipe.ParseNumber}).
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[any]any{"a": int64(14), "b": int64(41)}, asMap(numbers))

	out, err = sc.Parallelize(numbered(4), 2).
		Pipe([]string{"sh", "-c", "cat >/dev/null; exit 2"}, pipe.Options{}).
		Collect(context.Background())
	assert.ErrorIs(t, err, common.ErrExternalProcess)
	assert.Nil(t, out)
}

func TestBroadcastInTasks(t *testing.T) {
	sc := newTestContext(t, 4)
	names := worker.NewBroadcast(map[string]string{"k1": "uno", "k2": "dos"})
	ds := sc.Parallelize(numbered(4), 4).MapPartitionsWithContext(func(tc *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		lookup := worker.BroadcastValue(tc, names)
		out := make([]common.Entry, 0, len(in))
		for _, e := range in {
			if name, ok := lookup[e.Key.(string)]; ok {
				out = append(out, kv(e.Key, name))
			}
		}
		return out, nil
	}, true)

	out, err := ds.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[any]any{"k1": "uno", "k2": "dos"}, asMap(out))

	loads, _ := sc.Manager().Broadcasts().Stats()
	assert.Equal(t, 1, loads)
	sc.ReleaseBroadcast(names.ID())
	assert.Equal(t, 0, sc.Manager().Broadcasts().Len())
}

func TestDescribe(t *testing.T) {
	sc := newTestContext(t, 2)
	left := sc.Parallelize(numbered(2), 2).Map(func(e common.Entry) (common.Entry, error) { return e, nil })
	right := sc.Parallelize(numbered(2), 2)
	plan := left.Join(right, 2).Describe()
	assert.Equal(t, "join\n  map\n    parallelize\n  parallelize\n", plan)
}
