package reflectx

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type pair[K comparable, V any] struct {
	Key   K
	Value V
}

type store[T any] interface {
	Load() T
}

func TestGenericDefOf(t *testing.T) {
	def, args, ok := GenericDefOf(TypeOf[pair[string, map[string]int]]())
	require.True(t, ok)
	require.Equal(t, "pair", def.Name)
	require.Equal(t, 2, def.Arity)
	require.False(t, def.Pointer)
	require.Equal(t, reflect.Struct, def.Kind)
	require.Equal(t, "string,map[string]int", args)

	ptrDef, ptrArgs, ok := GenericDefOf(TypeOf[*pair[string, map[string]int]]())
	require.True(t, ok)
	require.True(t, ptrDef.Pointer)
	require.Equal(t, args, ptrArgs)
	require.NotEqual(t, def, ptrDef)

	ifaceDef, _, ok := GenericDefOf(TypeOf[store[func(int, string) error]]())
	require.True(t, ok)
	require.Equal(t, 1, ifaceDef.Arity)
	require.Equal(t, reflect.Interface, ifaceDef.Kind)
}

func TestGenericDefOf_SameDefinitionForDifferentArguments(t *testing.T) {
	a, argsA, _ := GenericDefOf(TypeOf[store[int]]())
	b, argsB, _ := GenericDefOf(TypeOf[store[string]]())

	require.Equal(t, a, b)
	require.NotEqual(t, argsA, argsB)
}

func TestGenericDefOf_NonGeneric(t *testing.T) {
	for _, typ := range []reflect.Type{TypeOf[int](), TypeOf[[]string](), TypeOf[*testing.T](), TypeOf[error]()} {
		_, _, ok := GenericDefOf(typ)
		require.False(t, ok, typ.String())
		require.False(t, IsGeneric(typ))
	}
}
