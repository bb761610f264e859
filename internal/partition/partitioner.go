package partition

import (
	"fmt"
	"hash/fnv"
	"math"
	"reflect"
	"strconv"

	"mini-shuffle/internal/common"
)

// Partitioner asigna cada clave a un índice de partición en [0, NumPartitions()).
//
// Las implementaciones tienen que ser inmutables y sin efectos secundarios: todas las
// tareas de una etapa las invocan en paralelo sin sincronización.
type Partitioner interface {
	NumPartitions() int
	Partition(key any) (int, error)
	// Name identifica el algoritmo. Dos particionadores con el mismo Name y el mismo
	// NumPartitions ubican cualquier clave en el mismo índice.
	Name() string
}

// HashPartitioner es el particionador por defecto: FNV-1a de la clave módulo N.
type HashPartitioner struct {
	numPartitions int
}

// NewHashPartitioner falla con ErrInvalidArgument si numPartitions <= 0.
func NewHashPartitioner(numPartitions int) (*HashPartitioner, error) {
	if numPartitions <= 0 {
		return nil, fmt.Errorf("el numero de particiones debe ser mayor a cero (%d): %w", numPartitions, common.ErrInvalidArgument)
	}
	return &HashPartitioner{numPartitions: numPartitions}, nil
}

func (h *HashPartitioner) NumPartitions() int { return h.numPartitions }

func (h *HashPartitioner) Name() string { return "hash-fnv32a" }

func (h *HashPartitioner) Partition(key any) (int, error) {
	return PartitionFor(key, h.numPartitions)
}

func (h *HashPartitioner) String() string {
	return fmt.Sprintf("%s/%d", h.Name(), h.numPartitions)
}

// PartitionFor es el contrato base: determinista y siempre en [0, numPartitions).
func PartitionFor(key any, numPartitions int) (int, error) {
	if numPartitions <= 0 {
		return 0, fmt.Errorf("el numero de particiones debe ser mayor a cero (%d): %w", numPartitions, common.ErrInvalidArgument)
	}
	sum, err := HashKey(key)
	if err != nil {
		return 0, err
	}
	return int(sum&0x7fffffff) % numPartitions, nil
}

// CoPartitioned indica si dos datasets particionados con a y b tienen cada clave en el
// mismo índice. Un particionador nil nunca está co-particionado.
func CoPartitioned(a, b Partitioner) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Name() == b.Name() && a.NumPartitions() == b.NumPartitions()
}

// HashKey calcula un hash estable de la clave. Claves iguales según == producen
// el mismo hash; el tipo dinámico forma parte de la codificación, igual que en ==.
func HashKey(key any) (uint32, error) {
	if err := CheckKey(key); err != nil {
		return 0, err
	}
	h := fnv.New32a()
	h.Write(encodeKey(key))
	return h.Sum32(), nil
}

// CheckKey detecta claves que no se pueden comparar (slices, maps, funcs o structs
// que los contienen detrás de una interfaz).
func CheckKey(key any) error {
	if key == nil {
		return nil
	}
	if !reflect.ValueOf(key).Comparable() {
		return fmt.Errorf("clave de tipo %T: %w", key, common.ErrKeyNotHashable)
	}
	return nil
}

func encodeKey(key any) []byte {
	switch k := key.(type) {
	case nil:
		return []byte("nil")
	case string:
		return append([]byte("s:"), k...)
	case int:
		return strconv.AppendInt([]byte("i:"), int64(k), 10)
	case int64:
		return strconv.AppendInt([]byte("i64:"), k, 10)
	case int32:
		return strconv.AppendInt([]byte("i32:"), int64(k), 10)
	case uint64:
		return strconv.AppendUint([]byte("u64:"), k, 10)
	case bool:
		return strconv.AppendBool([]byte("b:"), k)
	case float64:
		if k == 0 {
			k = 0 // -0.0 == 0.0
		}
		return strconv.AppendUint([]byte("f64:"), math.Float64bits(k), 16)
	case float32:
		if k == 0 {
			k = 0
		}
		return strconv.AppendUint([]byte("f32:"), uint64(math.Float32bits(k)), 16)
	default:
		return appendValue(nil, reflect.ValueOf(key))
	}
}

// appendValue codifica claves compuestas (arrays, structs, punteros) recorriendo sus
// elementos. Dos valores iguales según == producen los mismos bytes: los floats se
// normalizan igual que en encodeKey y los campos "_" se ignoran.
func appendValue(b []byte, v reflect.Value) []byte {
	if !v.IsValid() {
		return append(b, "nil"...)
	}
	b = append(b, v.Type().String()...)
	b = append(b, ':')

	switch v.Kind() {
	case reflect.String:
		return strconv.AppendQuote(b, v.String())
	case reflect.Bool:
		return strconv.AppendBool(b, v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.AppendInt(b, v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.AppendUint(b, v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return appendFloat(b, v.Float())
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		b = appendFloat(b, real(c))
		b = append(b, ',')
		return appendFloat(b, imag(c))
	case reflect.Array:
		b = append(b, '[')
		for i := 0; i < v.Len(); i++ {
			b = appendValue(b, v.Index(i))
			b = append(b, ',')
		}
		return append(b, ']')
	case reflect.Struct:
		b = append(b, '{')
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).Name == "_" {
				continue
			}
			b = appendValue(b, v.Field(i))
			b = append(b, ';')
		}
		return append(b, '}')
	case reflect.Interface:
		if v.IsNil() {
			return append(b, "nil"...)
		}
		return appendValue(b, v.Elem())
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return strconv.AppendUint(b, uint64(v.Pointer()), 16)
	default:
		// CheckKey ya rechazó slices, maps y funcs.
		return fmt.Appendf(b, "%v", v)
	}
}

func appendFloat(b []byte, f float64) []byte {
	if f == 0 {
		f = 0 // -0.0 == 0.0
	}
	return strconv.AppendUint(b, math.Float64bits(f), 16)
}
