package di

import (
	"reflect"
	"sync/atomic"
)

// containerEngine turns a call site into the accessor cached by the container.
type containerEngine interface {
	RealizeService(serviceType reflect.Type, callSite CallSite) serviceAccessor
}

type runtimeEngine struct{}

func (engine *runtimeEngine) RealizeService(serviceType reflect.Type, callSite CallSite) serviceAccessor {
	return func(scope *ContainerEngineScope, held *heldLock) (any, error) {
		return CallSiteResolverInstance.resolve(callSite, scope, held)
	}
}

func newRuntimeEngine() containerEngine {
	return &runtimeEngine{}
}

// dynamicEngine walks the call site until the second resolution, then compiles an
// accessor in the background and swaps it in.
type dynamicEngine struct {
	container *container
	builder   *compiledAccessorBuilder
}

func (engine *dynamicEngine) RealizeService(serviceType reflect.Type, callSite CallSite) serviceAccessor {
	var callCount atomic.Uint32

	return func(scope *ContainerEngineScope, held *heldLock) (any, error) {
		if callCount.Load() < 2 && callCount.Add(1) == 2 {
			go func(c *container) {
				accessor, err := engine.builder.Build(callSite)
				if err != nil || c.IsDisposed() {
					return
				}
				c.ReplaceServiceAccessor(serviceType, accessor)
			}(engine.container)
		}

		return CallSiteResolverInstance.resolve(callSite, scope, held)
	}
}

func newDynamicEngine(c *container) containerEngine {
	return &dynamicEngine{
		container: c,
		builder:   newCompiledAccessorBuilder(c.options.MaxStackDepth),
	}
}
