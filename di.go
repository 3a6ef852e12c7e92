package di

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/dozm/di/v2/errorx"
	"github.com/dozm/di/v2/reflectx"
)

// Container resolves services. Get returns a nil value and a nil error for a type
// that is not registered.
type Container interface {
	Get(reflect.Type) (any, error)
}

type Scope interface {
	Container() Container
	Dispose() error
}

type ScopeFactory interface {
	CreateScope() Scope
}

// Optional service used to determine if the specified type is available from the Container.
type IsService interface {
	IsService(serviceType reflect.Type) bool
}

// Disposable services are released when the scope that captured them is disposed.
// Services implementing io.Closer are released the same way.
type Disposable interface {
	Dispose()
}

// Get service of the type T from the container c
func Get[T any](c Container) T {
	result, err := TryGet[T](c)
	if err != nil {
		panic(err)
	}
	return result
}

func TryGet[T any](c Container) (result T, err error) {
	t := reflectx.TypeOf[T]()
	v, err := resolveType(c, t)
	if err != nil || v == nil {
		return
	}

	result, ok := v.(T)
	if !ok {
		err = &errorx.TypeIncompatibilityError{To: t, From: reflect.TypeOf(v)}
		return
	}

	return
}

// resolveType resolves t and reports an unregistered type as ServiceNotFound.
func resolveType(c Container, t reflect.Type) (any, error) {
	v, err := c.Get(t)
	if err != nil {
		return nil, err
	}

	if v == nil {
		if is, ok := c.(IsService); !ok || !is.IsService(t) {
			return nil, &errorx.ServiceNotFound{ServiceType: t}
		}
	}

	return v, nil
}

// Invoke the function fn.
// the input paramenters of the fn function will be resolved from the Container c.
func Invoke(c Container, fn any) (fnReturn []any, err error) {
	vfn := reflect.ValueOf(fn)
	if vfn.Kind() != reflect.Func {
		err = errors.New("fn is not a function")
		return
	}

	inputTypes := reflectx.GetInParameters(vfn.Type())

	inputs := make([]reflect.Value, len(inputTypes))
	for i, t := range inputTypes {
		v, e := resolveType(c, t)
		if e != nil {
			err = e
			return
		}

		inputs[i] = reflectx.ValueOrZero(v, t)
	}

	ouputs := vfn.Call(inputs)
	numOutputs := len(ouputs)
	if numOutputs > 0 {
		fnReturn = make([]any, numOutputs)
		for i, v := range ouputs {
			fnReturn[i] = v.Interface()
		}
	}

	return
}

// Dispose disposes c when it is a container built by a ContainerBuilder or the
// Container of a Scope. Other values are left alone.
func Dispose(c Container) error {
	if d, ok := c.(interface{ Dispose() error }); ok {
		return d.Dispose()
	}
	return nil
}

func panicError(p any) error {
	if e, ok := p.(error); ok {
		return e
	}
	return fmt.Errorf("%v", p)
}
