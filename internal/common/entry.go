package common

import "fmt"

// Entry es el par (clave, valor) que fluye por todo el motor.
// La clave debe ser comparable en tiempo de ejecución; el valor es opaco.
type Entry struct {
	Key   any `json:"key"`
	Value any `json:"value"`
}

func (e Entry) String() string {
	return fmt.Sprintf("(%v, %v)", e.Key, e.Value)
}

// Pair es el valor de salida de un Join: (valor izquierdo, valor derecho).
type Pair struct {
	Left  any `json:"left"`
	Right any `json:"right"`
}

func (p Pair) String() string {
	return fmt.Sprintf("(%v, %v)", p.Left, p.Right)
}
