package driver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/config"
	"mini-shuffle/internal/logger"
	"mini-shuffle/internal/partition"
	"mini-shuffle/internal/shuffle"
	"mini-shuffle/internal/storage"
	"mini-shuffle/internal/worker"
)

// Context es el punto de entrada del motor: un pool de ejecución, el executor de
// shuffles y el historial de jobs. Se crea uno por proceso.
type Context struct {
	cfg  config.Config
	em   *worker.ExecutionManager
	exec *shuffle.Executor
	jobs *storage.JobStore
}

func NewContext(cfg config.Config) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	em := worker.NewExecutionManager(cfg.MaxWorkers)
	jobs := storage.NewJobStore()
	jobs.SetHistoryLimit(cfg.JobHistory)
	logger.Info("Driver", "Contexto iniciado: %d workers, %d particiones por defecto", cfg.MaxWorkers, cfg.DefaultPartitions)
	return &Context{
		cfg:  cfg,
		em:   em,
		exec: shuffle.NewExecutor(em, jobs),
		jobs: jobs,
	}, nil
}

func (sc *Context) Config() config.Config { return sc.cfg }

// Jobs devuelve el historial de jobs (estado, etapas y reportes de tareas).
func (sc *Context) Jobs() *storage.JobStore { return sc.jobs }

func (sc *Context) Manager() *worker.ExecutionManager { return sc.em }

// ReleaseBroadcast saca un broadcast del cache de los workers.
func (sc *Context) ReleaseBroadcast(id string) { sc.em.Broadcasts().Release(id) }

// ==========================================
// FUENTES
// ==========================================

// Parallelize reparte entries en n particiones (round-robin). n == 0 usa el default.
func (sc *Context) Parallelize(entries []common.Entry, n int) *Dataset {
	n, err := sc.partitionsOrDefault(n)
	data := append([]common.Entry(nil), entries...)
	return sc.newSource("parallelize", n, err, func(tc *worker.TaskContext) ([]common.Entry, error) {
		var out []common.Entry
		for i := tc.PartitionIndex(); i < len(data); i += n {
			out = append(out, data[i])
		}
		return out, nil
	})
}

// TextFile lee path por líneas: clave = número de línea (desde 0), valor = la línea.
// La línea i va a la partición i % n.
func (sc *Context) TextFile(path string, n int) *Dataset {
	n, err := sc.partitionsOrDefault(n)
	return sc.newSource("textFile", n, err, func(tc *worker.TaskContext) ([]common.Entry, error) {
		return readLines(path, tc.PartitionIndex(), n)
	})
}

func readLines(path string, index, n int) ([]common.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error abriendo input %s: %w", path, err)
	}
	defer file.Close()

	var out []common.Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		// Cada tarea lee el archivo completo y se queda con sus líneas
		if lineNum%n == index {
			out = append(out, common.Entry{Key: lineNum, Value: scanner.Text()})
		}
		lineNum++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error leyendo %s: %w", path, err)
	}
	return out, nil
}

func (sc *Context) partitionsOrDefault(n int) (int, error) {
	switch {
	case n == 0:
		return sc.cfg.DefaultPartitions, nil
	case n < 0:
		return 0, fmt.Errorf("numPartitions = %d: %w", n, common.ErrInvalidArgument)
	default:
		return n, nil
	}
}

// partitionerFor resuelve el particionador de una operación por clave. Con n == 0
// reutiliza el del input si lo tiene.
func (sc *Context) partitionerFor(n int, in *storage.Dataset) (partition.Partitioner, error) {
	if n == 0 && in != nil && in.Partitioner != nil {
		return in.Partitioner, nil
	}
	n, err := sc.partitionsOrDefault(n)
	if err != nil {
		return nil, err
	}
	return partition.NewHashPartitioner(n)
}

// ==========================================
// JOBS
// ==========================================

// runJob registra un job, lo ejecuta y deja el estado final en el JobStore.
// Con jobID vacío se genera uno nuevo.
func (sc *Context) runJob(ctx context.Context, jobID, name string, fn func(jobID string) error) error {
	if jobID == "" {
		jobID = uuid.New().String()
	}
	if _, err := sc.jobs.GetJob(jobID); errors.Is(err, common.ErrJobNotFound) {
		sc.jobs.CreateJob(jobID, name)
	}
	_ = sc.jobs.SetStatus(jobID, common.JobStatusRunning, nil)
	logger.Info("Driver", "Job %s (%s) iniciado", jobID, name)

	err := ctx.Err()
	if err == nil {
		err = fn(jobID)
	}
	if err != nil {
		_ = sc.jobs.SetStatus(jobID, common.JobStatusFailed, err)
		logger.Error("Driver", "Job %s (%s) falló: %v", jobID, name, err)
		return err
	}
	_ = sc.jobs.SetStatus(jobID, common.JobStatusSucceeded, nil)
	logger.Info("Driver", "Job %s (%s) terminado", jobID, name)
	return nil
}
