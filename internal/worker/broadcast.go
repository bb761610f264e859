package worker

import (
	"sync"

	"github.com/google/uuid"

	"mini-shuffle/internal/logger"
)

// Broadcast es un valor de sólo lectura compartido por todas las tareas de todas las
// etapas que lo usen. Nadie lo modifica: si una tarea necesita escribir, copia primero.
type Broadcast[T any] struct {
	id    string
	value T
}

func NewBroadcast[T any](value T) *Broadcast[T] {
	return &Broadcast[T]{id: uuid.New().String(), value: value}
}

func (b *Broadcast[T]) ID() string { return b.id }

// Value es la lectura del lado del driver.
func (b *Broadcast[T]) Value() T { return b.value }

// BroadcastValue lee b desde una tarea, pasando por la caché del pool.
func BroadcastValue[T any](tc *TaskContext, b *Broadcast[T]) T {
	v := tc.manager.broadcasts.GetOrLoad(b.id, func() any { return b.value })
	return v.(T)
}

// BroadcastCache guarda los valores broadcast por id. Se llena la primera vez que
// una tarea pide cada id.
type BroadcastCache struct {
	mu     sync.Mutex
	values map[string]any
	loads  int
	hits   int
}

func NewBroadcastCache() *BroadcastCache {
	return &BroadcastCache{values: make(map[string]any)}
}

func (c *BroadcastCache) GetOrLoad(id string, load func() any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values[id]; ok {
		c.hits++
		return v
	}
	v := load()
	c.values[id] = v
	c.loads++
	logger.Debug("Broadcast", "Cargado broadcast %s", id)
	return v
}

// Release libera un broadcast que ya no se usa.
func (c *BroadcastCache) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, id)
}

// Stats devuelve (cargas, aciertos) para diagnóstico.
func (c *BroadcastCache) Stats() (loads, hits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads, c.hits
}

func (c *BroadcastCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
