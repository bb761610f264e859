package worker

import (
	"sync"

	"github.com/google/uuid"
)

type accumulable interface {
	mergeLocal(local any)
}

// Accumulator es un contador de sólo escritura para las tareas. Cada tarea suma en un
// valor local; los locales se combinan con merge en la barrera de la etapa.
// merge tiene que ser conmutativa y asociativa.
type Accumulator[T any] struct {
	id    string
	name  string
	zero  T
	merge func(T, T) T

	mu    sync.Mutex
	value T
}

func NewAccumulator[T any](name string, zero T, merge func(T, T) T) *Accumulator[T] {
	return &Accumulator[T]{
		id:    uuid.New().String(),
		name:  name,
		zero:  zero,
		merge: merge,
		value: zero,
	}
}

// NewCounter es el caso más común: suma de enteros.
func NewCounter(name string) *Accumulator[int64] {
	return NewAccumulator(name, int64(0), func(a, b int64) int64 { return a + b })
}

func (a *Accumulator[T]) Name() string { return a.name }

// Value devuelve el valor del driver: incluye sólo etapas terminadas con éxito.
func (a *Accumulator[T]) Value() T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}

// Reset vuelve al valor cero.
func (a *Accumulator[T]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = a.zero
}

func (a *Accumulator[T]) mergeLocal(local any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = a.merge(a.value, local.(T))
}

// Add suma v al valor local de acc en esta tarea.
func Add[T any](tc *TaskContext, acc *Accumulator[T], v T) {
	l, ok := tc.locals[acc.id]
	if !ok {
		tc.locals[acc.id] = &taskLocal{acc: acc, value: acc.merge(acc.zero, v)}
		tc.order = append(tc.order, acc.id)
		return
	}
	l.value = acc.merge(l.value.(T), v)
}
