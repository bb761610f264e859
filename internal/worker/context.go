package worker

import "mini-shuffle/internal/common"

// TaskContext es lo único que una tarea comparte con el resto del motor.
// Lo usa una sola goroutine, así que no tiene locks.
type TaskContext struct {
	Task common.Task

	// ShuffleOutput lo completan las tareas SHUFFLE_MAP para el reporte.
	ShuffleOutput []common.ShuffleMeta

	manager *ExecutionManager
	locals  map[string]*taskLocal
	order   []string
}

type taskLocal struct {
	acc   accumulable
	value any
}

func newTaskContext(task common.Task, manager *ExecutionManager) *TaskContext {
	return &TaskContext{
		Task:    task,
		manager: manager,
		locals:  make(map[string]*taskLocal),
	}
}

// PartitionIndex es el índice de la partición que procesa esta tarea.
func (tc *TaskContext) PartitionIndex() int { return tc.Task.PartitionIndex }

// flush vuelca los valores locales en sus acumuladores. Sólo se llama en la barrera.
func (tc *TaskContext) flush() {
	for _, id := range tc.order {
		l := tc.locals[id]
		l.acc.mergeLocal(l.value)
	}
	tc.locals = nil
	tc.order = nil
}
