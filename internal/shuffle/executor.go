package shuffle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/logger"
	"mini-shuffle/internal/worker"
)

// StageRecorder recibe el resultado de cada etapa. *storage.JobStore lo implementa.
type StageRecorder interface {
	RecordStage(jobID string, info common.StageInfo) error
	SaveTaskReport(stageID string, report common.TaskReport)
	CheckStageComplete(stageID string, expectedTasks int) bool
}

// Executor reparte entradas entre particiones y ejecuta las operaciones por clave.
// Cada operación es una o más etapas de tareas por partición sobre el ExecutionManager.
type Executor struct {
	em       *worker.ExecutionManager
	recorder StageRecorder
}

// NewExecutor crea el executor. recorder puede ser nil.
func NewExecutor(em *worker.ExecutionManager, recorder StageRecorder) *Executor {
	return &Executor{em: em, recorder: recorder}
}

// Manager devuelve el pool sobre el que corren las etapas.
func (e *Executor) Manager() *worker.ExecutionManager { return e.em }

// stageFunc es el trabajo de una partición dentro de una etapa; suma sus contadores en metrics.
type stageFunc func(tc *worker.TaskContext, metrics *worker.Accumulator[common.StageMetrics]) error

// runStage crea una tarea por índice, las ejecuta con barrera y registra la etapa.
func (e *Executor) runStage(ctx context.Context, jobID, stageType string, indices []int, fn stageFunc) (common.StageMetrics, error) {
	stageID := fmt.Sprintf("%s-%s", strings.ToLower(stageType), uuid.New().String()[:8])
	tasks := make([]common.Task, len(indices))
	for i, idx := range indices {
		tasks[i] = common.Task{
			TaskID:         uuid.New().String(),
			JobID:          jobID,
			StageID:        stageID,
			StageType:      stageType,
			PartitionIndex: idx,
		}
	}

	metrics := worker.NewAccumulator("stage-metrics", common.StageMetrics{}, common.StageMetrics.Merge)
	start := time.Now()
	reports, err := e.em.RunStage(ctx, tasks, func(tc *worker.TaskContext) error {
		return fn(tc, metrics)
	})
	result := metrics.Value()
	result.DurationMS = time.Since(start).Milliseconds()

	e.record(jobID, stageID, stageType, reports, result)
	if err != nil {
		return result, err
	}
	if e.recorder != nil && !e.recorder.CheckStageComplete(stageID, len(tasks)) {
		logger.Warn("Shuffle", "Etapa %s (%s) sin reporte exitoso de las %d tareas", stageID, stageType, len(tasks))
	}
	logger.Debug("Shuffle", "Etapa %s (%s) OK: %d tareas, in=%d out=%d transferidos=%d",
		stageID, stageType, len(tasks), result.RecordsIn, result.RecordsOut, result.RecordsTransferred)
	return result, nil
}

func (e *Executor) record(jobID, stageID, stageType string, reports []common.TaskReport, metrics common.StageMetrics) {
	if e.recorder == nil {
		return
	}
	for _, r := range reports {
		e.recorder.SaveTaskReport(stageID, r)
	}
	info := common.StageInfo{StageID: stageID, StageType: stageType, Tasks: len(reports), Metrics: metrics}
	if err := e.recorder.RecordStage(jobID, info); err != nil {
		logger.Warn("Shuffle", "No se pudo registrar la etapa %s: %v", stageID, err)
	}
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
