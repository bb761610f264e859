package udf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-shuffle/internal/common"
)

// TestUDFImplementations verifica que las funciones predefinidas funcionen.
func TestUDFImplementations(t *testing.T) {
	// --- Test de UDF Map: to_uppercase ---
	t.Run("Map_to_uppercase", func(t *testing.T) {
		tests := []struct {
			name     string
			input    string
			expected string
		}{
			{name: "Caso normal", input: "hello world", expected: "HELLO WORLD"},
			{name: "Cadena con números", input: "Go 1.21", expected: "GO 1.21"},
			{name: "Cadena vacía", input: "", expected: ""},
		}

		// Obtenemos la función directamente del registro (UDFRegistry)
		fn := UDFRegistry["to_uppercase"].(UDFMapFn)

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result, err := fn(common.Entry{Key: 1, Value: tt.input})
				require.NoError(t, err)
				assert.Equal(t, common.Entry{Key: 1, Value: tt.expected}, result)
			})
		}

		_, err := fn(common.Entry{Value: 3})
		assert.Error(t, err)
	})

	// --- Test de UDF Filter: not_empty ---
	t.Run("Filter_not_empty", func(t *testing.T) {
		tests := []struct {
			name  string
			input string
			want  bool
		}{
			{name: "Datos presentes", input: "data", want: true},
			{name: "Vacío literal", input: "", want: false},
			{name: "Solo espacios", input: "  ", want: false},
			{name: "Solo tabuladores", input: "\t\t", want: false},
		}

		fn := UDFRegistry["not_empty"].(UDFFilterFn)

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, fn(common.Entry{Value: tt.input}))
			})
		}
	})

	t.Run("FlatMap_map_wordcount", func(t *testing.T) {
		fn := UDFRegistry["map_wordcount"].(UDFFlatMapFn)
		got, err := fn(common.Entry{Key: 0, Value: "Gato perro, gato!"})
		require.NoError(t, err)
		assert.Equal(t, []common.Entry{
			{Key: "gato", Value: 1},
			{Key: "perro", Value: 1},
			{Key: "gato", Value: 1},
		}, got)
	})

	t.Run("FlatMap_tokenize", func(t *testing.T) {
		fn := UDFRegistry["tokenize_flatmap"].(UDFFlatMapFn)
		got, err := fn(common.Entry{Key: 7, Value: "a b"})
		require.NoError(t, err)
		assert.Equal(t, []common.Entry{{Key: 7, Value: "a"}, {Key: 7, Value: "b"}}, got)
	})

	t.Run("Map_split_csv_key", func(t *testing.T) {
		fn := UDFRegistry["split_csv_key"].(UDFMapFn)
		got, err := fn(common.Entry{Key: 0, Value: "U,1,Usuario1"})
		require.NoError(t, err)
		assert.Equal(t, common.Entry{Key: "U", Value: "1,Usuario1"}, got)
	})

	t.Run("Combine", func(t *testing.T) {
		sum := UDFRegistry["reduce_sum"].(UDFCombineFn)
		assert.Equal(t, 5, sum(2, 3))
		assert.Equal(t, int64(5), sum(int64(2), int64(3)))
		assert.Equal(t, 3.5, sum(1, 2.5))

		maxFn := UDFRegistry["reduce_max"].(UDFCombineFn)
		assert.Equal(t, 9, maxFn(9, 4))
		assert.Equal(t, 9, maxFn(4, 9))
	})
}

// TestGetUDFFunctions verifica la recuperación de funciones y el manejo de errores.
func TestGetUDFFunctions(t *testing.T) {
	tests := []struct {
		name      string
		udfName   string
		opType    string // Para seleccionar la función Get*Function a usar
		expectErr bool
	}{
		{name: "Map Exitoso", udfName: "to_uppercase", opType: common.OpTypeMap, expectErr: false},
		{name: "Filter Exitoso", udfName: "not_empty", opType: common.OpTypeFilter, expectErr: false},
		{name: "FlatMap Exitoso", udfName: "map_wordcount", opType: common.OpTypeFlatMap, expectErr: false},
		{name: "Reduce Exitoso", udfName: "reduce_sum", opType: common.OpTypeReduceByKey, expectErr: false},
		{name: "Map no existente", udfName: "non_existent_map", opType: common.OpTypeMap, expectErr: true},
		{name: "Tipo equivocado", udfName: "not_empty", opType: common.OpTypeMap, expectErr: true},
		{name: "Reduce no existente", udfName: "fantasma", opType: common.OpTypeReduceByKey, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			switch tt.opType {
			case common.OpTypeMap:
				_, err = GetMapFunction(tt.udfName)
			case common.OpTypeFilter:
				_, err = GetFilterFunction(tt.udfName)
			case common.OpTypeFlatMap:
				_, err = GetFlatMapFunction(tt.udfName)
			case common.OpTypeReduceByKey:
				_, err = GetCombineFunction(tt.udfName)
			}

			if tt.expectErr {
				assert.ErrorIs(t, err, common.ErrUnknownUDF)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
