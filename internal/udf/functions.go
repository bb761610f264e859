package udf

import (
	"fmt"
	"strings"

	"mini-shuffle/internal/common"
)

type UDFMapFn func(common.Entry) (common.Entry, error)
type UDFFilterFn func(common.Entry) bool

// UDFFlatMapFn es conceptualmente igual a Map (1 -> N), se usa para aplanar estructuras
type UDFFlatMapFn func(common.Entry) ([]common.Entry, error)

// UDFCombineFn es el combiner de ReduceByKey: asociativo y conmutativo.
type UDFCombineFn func(a, b any) any

var UDFRegistry = map[string]interface{}{
	"to_uppercase": UDFMapFn(func(e common.Entry) (common.Entry, error) {
		s, ok := e.Value.(string)
		if !ok {
			return e, fmt.Errorf("to_uppercase espera un string, recibio %T", e.Value)
		}
		return common.Entry{Key: e.Key, Value: strings.ToUpper(s)}, nil
	}),
	"map_wordcount": UDFFlatMapFn(func(e common.Entry) ([]common.Entry, error) {
		clean := strings.Map(func(r rune) rune {
			if strings.ContainsRune(".,;?!-", r) {
				return -1
			}
			return r
		}, fmt.Sprint(e.Value))
		words := strings.Fields(clean)
		results := make([]common.Entry, 0, len(words))
		for _, w := range words {
			results = append(results, common.Entry{Key: strings.ToLower(w), Value: 1})
		}
		return results, nil
	}),
	"tokenize_flatmap": UDFFlatMapFn(func(e common.Entry) ([]common.Entry, error) {
		// Una línea de texto -> un registro por palabra, conservando la clave de la línea
		words := strings.Fields(fmt.Sprint(e.Value))
		res := make([]common.Entry, 0, len(words))
		for _, w := range words {
			res = append(res, common.Entry{Key: e.Key, Value: w})
		}
		return res, nil
	}),
	"split_csv_key": UDFMapFn(func(e common.Entry) (common.Entry, error) {
		// "U,1,Usuario1" -> ("U", "1,Usuario1")
		line := fmt.Sprint(e.Value)
		key, rest, _ := strings.Cut(line, ",")
		return common.Entry{Key: key, Value: rest}, nil
	}),
	"not_empty": UDFFilterFn(func(e common.Entry) bool {
		return strings.TrimSpace(fmt.Sprint(e.Value)) != ""
	}),
	"reduce_sum": UDFCombineFn(func(a, b any) any {
		return addNumbers(a, b)
	}),
	"reduce_max": UDFCombineFn(func(a, b any) any {
		if toFloat(b) > toFloat(a) {
			return b
		}
		return a
	}),
}

// addNumbers suma conservando el tipo cuando ambos lados coinciden.
func addNumbers(a, b any) any {
	switch x := a.(type) {
	case int:
		if y, ok := b.(int); ok {
			return x + y
		}
	case int64:
		if y, ok := b.(int64); ok {
			return x + y
		}
	}
	return toFloat(a) + toFloat(b)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return 0
	}
}

// Helpers para obtener funciones con cast seguro
func GetMapFunction(name string) (UDFMapFn, error) {
	if fn, ok := UDFRegistry[name].(UDFMapFn); ok {
		return fn, nil
	}
	return nil, fmt.Errorf("map function %s: %w", name, common.ErrUnknownUDF)
}
func GetFlatMapFunction(name string) (UDFFlatMapFn, error) {
	if fn, ok := UDFRegistry[name].(UDFFlatMapFn); ok {
		return fn, nil
	}
	return nil, fmt.Errorf("flat_map function %s: %w", name, common.ErrUnknownUDF)
}
func GetFilterFunction(name string) (UDFFilterFn, error) {
	if fn, ok := UDFRegistry[name].(UDFFilterFn); ok {
		return fn, nil
	}
	return nil, fmt.Errorf("filter function %s: %w", name, common.ErrUnknownUDF)
}
func GetCombineFunction(name string) (UDFCombineFn, error) {
	if fn, ok := UDFRegistry[name].(UDFCombineFn); ok {
		return fn, nil
	}
	return nil, fmt.Errorf("reduce function %s: %w", name, common.ErrUnknownUDF)
}
