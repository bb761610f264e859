package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/logger"
)

// ==========================================
// 1. GESTIÓN DEL POOL DE HILOS (WORKER POOL)
// ==========================================

// ExecutionManager controla la concurrencia del motor: cada etapa lanza una tarea por
// partición y como máximo maxThreads corren a la vez.
type ExecutionManager struct {
	maxThreads int
	semaphore  chan struct{} // Semáforo para limitar concurrencia
	broadcasts *BroadcastCache
}

// NewExecutionManager crea el pool. maxThreads <= 0 se trata como 1.
func NewExecutionManager(maxThreads int) *ExecutionManager {
	if maxThreads <= 0 {
		maxThreads = 1
	}
	logger.Debug("Executor", "Inicializado pool con %d hilos", maxThreads)
	return &ExecutionManager{
		maxThreads: maxThreads,
		semaphore:  make(chan struct{}, maxThreads),
		broadcasts: NewBroadcastCache(),
	}
}

func (e *ExecutionManager) MaxThreads() int { return e.maxThreads }

// Broadcasts expone la caché de variables broadcast de este pool.
func (e *ExecutionManager) Broadcasts() *BroadcastCache { return e.broadcasts }

// TaskFunc es el trabajo de una partición. Sólo ve su TaskContext.
type TaskFunc func(tc *TaskContext) error

// ==========================================
// 2. EJECUCIÓN DE UNA ETAPA (BARRERA)
// ==========================================

// RunStage ejecuta todas las tareas y espera a que terminen: ninguna etapa que dependa
// de esta puede empezar antes de que RunStage devuelva.
//
// La primera tarea que falla aborta la etapa: las tareas que todavía no arrancaron se
// marcan SKIPPED, las que están corriendo terminan normalmente. Los acumuladores sólo
// reciben los valores locales si la etapa completa tuvo éxito.
func (e *ExecutionManager) RunStage(ctx context.Context, tasks []common.Task, fn TaskFunc) ([]common.TaskReport, error) {
	reports := make([]common.TaskReport, len(tasks))
	contexts := make([]*TaskContext, len(tasks))

	abort := make(chan struct{})
	var abortOnce sync.Once
	var firstErr error
	var errMu sync.Mutex
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		abortOnce.Do(func() { close(abort) })
	}

	var wg sync.WaitGroup
	for i, task := range tasks {
		tc := newTaskContext(task, e)
		contexts[i] = tc
		wg.Add(1)
		go func(i int, tc *TaskContext) {
			defer wg.Done()
			reports[i] = e.runTask(ctx, abort, tc, fn, fail)
		}(i, tc)
	}
	wg.Wait()

	if firstErr != nil {
		return reports, firstErr
	}

	// Barrera superada: recién ahora los acumuladores ven los valores de las tareas.
	for _, tc := range contexts {
		tc.flush()
	}
	return reports, nil
}

func (e *ExecutionManager) runTask(ctx context.Context, abort <-chan struct{}, tc *TaskContext, fn TaskFunc, fail func(error)) common.TaskReport {
	task := tc.Task
	report := common.TaskReport{
		TaskID:         task.TaskID,
		JobID:          task.JobID,
		StageID:        task.StageID,
		PartitionIndex: task.PartitionIndex,
		Timestamp:      time.Now().Unix(),
	}

	// Adquirir token (bloquea si está lleno), salvo que la etapa ya esté abortada.
	select {
	case e.semaphore <- struct{}{}:
	case <-abort:
		report.Status = common.TaskStatusSkipped
		return report
	case <-ctx.Done():
		report.Status = common.TaskStatusSkipped
		fail(fmt.Errorf("tarea %s cancelada: %w", task.TaskID, ctx.Err()))
		return report
	}
	defer func() { <-e.semaphore }() // Liberar token al salir

	// Entre adquirir el token y arrancar puede haber llegado un abort.
	select {
	case <-abort:
		report.Status = common.TaskStatusSkipped
		return report
	default:
	}
	if err := ctx.Err(); err != nil {
		report.Status = common.TaskStatusSkipped
		fail(fmt.Errorf("tarea %s cancelada: %w", task.TaskID, err))
		return report
	}

	logger.Debug("Executor", "Iniciando tarea %s (particion %d, threads activos: %d/%d)", task.TaskID, task.PartitionIndex, len(e.semaphore), e.maxThreads)
	start := time.Now()
	err := safeRun(fn, tc)
	report.DurationMS = time.Since(start).Milliseconds()
	report.ShuffleOutput = tc.ShuffleOutput

	if err != nil {
		report.Status = common.TaskStatusFailure
		report.ErrorMsg = err.Error()
		logger.Warn("Executor", "Tarea %s FALLÓ: %v", task.TaskID, err)
		fail(fmt.Errorf("etapa %s, particion %d: %w", task.StageID, task.PartitionIndex, err))
		return report
	}
	report.Status = common.TaskStatusSuccess
	return report
}

// safeRun convierte un panic de la función de usuario en un error de la tarea.
func safeRun(fn TaskFunc, tc *TaskContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic en la tarea %s: %v", tc.Task.TaskID, r)
		}
	}()
	return fn(tc)
}
