package partition

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-shuffle/internal/common"
)

type compositeKey struct {
	Region string
	ID     int
}

type keyWithIface struct {
	Payload any
}

// signedName imprime distinto dos valores que == considera iguales.
type signedName struct {
	Name string
	Sign float64
}

func (s signedName) String() string { return fmt.Sprintf("%s/%v", s.Name, s.Sign) }

type keyWithBlank struct {
	ID int
	_  int
}

func TestPartitionFor_StableAndInRange(t *testing.T) {
	keys := []any{
		"a", "b", "gato", "", 0, 1, -42, int64(7), int32(7), uint64(9), true, 3.14,
		compositeKey{"sur", 3}, [2]int{1, 2}, nil,
	}
	for _, n := range []int{1, 2, 3, 16, 97} {
		for _, k := range keys {
			first, err := PartitionFor(k, n)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, first, 0)
			assert.Less(t, first, n)
			for i := 0; i < 5; i++ {
				again, err := PartitionFor(k, n)
				require.NoError(t, err)
				assert.Equal(t, first, again, "clave %v con n=%d no es estable", k, n)
			}
		}
	}
}

func TestPartitionFor_EqualKeysSameIndex(t *testing.T) {
	// Dos valores distintos en memoria pero iguales según ==.
	a := compositeKey{Region: "norte", ID: 10}
	b := compositeKey{Region: "norte", ID: 10}
	pa, err := PartitionFor(a, 13)
	require.NoError(t, err)
	pb, err := PartitionFor(b, 13)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)

	negZero, err := HashKey(math.Copysign(0, -1))
	require.NoError(t, err)
	posZero, err := HashKey(0.0)
	require.NoError(t, err)
	assert.Equal(t, posZero, negZero)

	s := fmt.Sprint("ga", "to")
	ps, err := PartitionFor(s, 5)
	require.NoError(t, err)
	pg, err := PartitionFor("gato", 5)
	require.NoError(t, err)
	assert.Equal(t, pg, ps)
}

func TestPartitionFor_EqualCompositeKeysSameIndex(t *testing.T) {
	negZero := math.Copysign(0, -1)
	tests := []struct {
		name string
		a, b any
	}{
		{name: "Array de floats con -0", a: [1]float64{negZero}, b: [1]float64{0}},
		{name: "Struct con float -0", a: signedName{"x", negZero}, b: signedName{"x", 0}},
		{name: "Interfaz con float -0", a: keyWithIface{Payload: negZero}, b: keyWithIface{Payload: 0.0}},
		{name: "Array de structs", a: [2]compositeKey{{"a", 1}, {"b", 2}}, b: [2]compositeKey{{"a", 1}, {"b", 2}}},
		{name: "Complejo con -0", a: [1]complex128{complex(negZero, 1)}, b: [1]complex128{complex(0, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, tt.a == tt.b)
			for _, n := range []int{2, 8, 31} {
				pa, err := PartitionFor(tt.a, n)
				require.NoError(t, err)
				pb, err := PartitionFor(tt.b, n)
				require.NoError(t, err)
				assert.Equal(t, pa, pb, "n=%d", n)
			}
			ha, err := HashKey(tt.a)
			require.NoError(t, err)
			hb, err := HashKey(tt.b)
			require.NoError(t, err)
			assert.Equal(t, ha, hb)
		})
	}
}

func TestHashKey_DistinguishesCompositeKeys(t *testing.T) {
	a, err := HashKey([2]string{"a,b", "c"})
	require.NoError(t, err)
	b, err := HashKey([2]string{"a", "b,c"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// Mismo contenido, distinto tipo dinámico dentro de la interfaz.
	i, err := HashKey(keyWithIface{Payload: 1})
	require.NoError(t, err)
	i64, err := HashKey(keyWithIface{Payload: int64(1)})
	require.NoError(t, err)
	assert.NotEqual(t, i, i64)

	// Los campos "_" no participan de ==.
	x, err := HashKey(keyWithBlank{ID: 3})
	require.NoError(t, err)
	y, err := HashKey(keyWithBlank{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, x, y)
}

func TestPartitionFor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		key     any
		n       int
		wantErr error
	}{
		{name: "Cero particiones", key: "a", n: 0, wantErr: common.ErrInvalidArgument},
		{name: "Particiones negativas", key: "a", n: -3, wantErr: common.ErrInvalidArgument},
		{name: "Clave slice", key: []int{1, 2}, n: 2, wantErr: common.ErrKeyNotHashable},
		{name: "Clave map", key: map[string]int{"a": 1}, n: 2, wantErr: common.ErrKeyNotHashable},
		{name: "Struct con slice en interfaz", key: keyWithIface{Payload: []string{"x"}}, n: 2, wantErr: common.ErrKeyNotHashable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PartitionFor(tt.key, tt.n)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPartitionFor_SpreadsKeys(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		p, err := PartitionFor(fmt.Sprintf("clave-%d", i), 4)
		require.NoError(t, err)
		seen[p] = true
	}
	assert.Len(t, seen, 4, "200 claves deberían ocupar las 4 particiones")
}

func TestHashPartitioner(t *testing.T) {
	_, err := NewHashPartitioner(0)
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	p, err := NewHashPartitioner(8)
	require.NoError(t, err)
	assert.Equal(t, 8, p.NumPartitions())

	got, err := p.Partition("perro")
	require.NoError(t, err)
	want, err := PartitionFor("perro", 8)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCoPartitioned(t *testing.T) {
	p4a, _ := NewHashPartitioner(4)
	p4b, _ := NewHashPartitioner(4)
	p8, _ := NewHashPartitioner(8)

	assert.True(t, CoPartitioned(p4a, p4b))
	assert.False(t, CoPartitioned(p4a, p8))
	assert.False(t, CoPartitioned(p4a, nil))
	assert.False(t, CoPartitioned(nil, nil))
}
