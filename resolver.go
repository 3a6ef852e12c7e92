package di

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/dozm/di/v2/reflectx"
	"github.com/dozm/di/v2/syncx"
)

var CallSiteResolverInstance *CallSiteResolver = newCallSiteResolver()

// heldLock is a scope lock taken by a call chain. Holds link to the locks the chain
// took before them. A hold is active until the build that took it returns.
type heldLock struct {
	scope  *ContainerEngineScope
	outer  *heldLock
	active atomic.Bool
}

// holds reports whether the lock of scope is among the active holds of h.
func (h *heldLock) holds(scope *ContainerEngineScope) bool {
	for ; h != nil; h = h.outer {
		if h.scope == scope && h.active.Load() {
			return true
		}
	}
	return false
}

type resolverContext struct {
	Scope *ContainerEngineScope
	Held  *heldLock
	guard *syncx.StackGuard
}

func (c resolverContext) stackGuard() *syncx.StackGuard {
	return c.guard
}

// container is the Container handed to factories and to Container parameters.
// Inside a cached build it is a view that resolves with the locks the chain holds.
func (c resolverContext) container() Container {
	if c.Held == nil {
		return c.Scope
	}
	return &chainView{scope: c.Scope, held: c.Held}
}

func newResolverContext(scope *ContainerEngineScope, held *heldLock) resolverContext {
	return resolverContext{
		Scope: scope,
		Held:  held,
		guard: syncx.NewStackGuard(scope.RootContainer.options.MaxStackDepth),
	}
}

// CallSiteResolver produces instances by walking call sites.
type CallSiteResolver struct {
	callSiteVisitor[resolverContext, any]
}

func (r *CallSiteResolver) Resolve(callSite CallSite, scope *ContainerEngineScope) (any, error) {
	return r.resolve(callSite, scope, nil)
}

func (r *CallSiteResolver) resolve(callSite CallSite, scope *ContainerEngineScope, held *heldLock) (any, error) {
	return r.visitCallSite(callSite, newResolverContext(scope, held))
}

func (r *CallSiteResolver) visitNoCache(callSite CallSite, ctx resolverContext) (any, error) {
	return r.visitCallSiteMain(callSite, ctx)
}

func (r *CallSiteResolver) visitDisposeCache(transientCallSite CallSite, ctx resolverContext) (any, error) {
	v, err := r.visitCallSiteMain(transientCallSite, ctx)
	if err != nil {
		return nil, err
	}

	if err = ctx.Scope.captureDisposable(v); err != nil {
		return nil, err
	}

	return v, nil
}

func (r *CallSiteResolver) visitRootCache(callSite CallSite, ctx resolverContext) (any, error) {
	return resolveCached(callSite.Cache().Key, ctx, ctx.Scope.RootContainer.Root,
		func(ctx resolverContext) (any, error) { return r.visitCallSiteMain(callSite, ctx) })
}

func (r *CallSiteResolver) visitScopeCache(callSite CallSite, ctx resolverContext) (any, error) {
	return resolveCached(callSite.Cache().Key, ctx, ctx.Scope,
		func(ctx resolverContext) (any, error) { return r.visitCallSiteMain(callSite, ctx) })
}

func (r *CallSiteResolver) visitConstructor(callSite *ConstructorCallSite, ctx resolverContext) (any, error) {
	inValues := make([]reflect.Value, len(callSite.Parameters))
	for i, p := range callSite.Parameters {
		v, err := r.visitCallSite(p, ctx)
		if err != nil {
			return nil, err
		}
		inValues[i] = reflectx.ValueOrZero(v, callSite.Ctor.In[i])
	}

	return invokeConstructor(callSite.Ctor, inValues)
}

func (r *CallSiteResolver) visitConstant(callSite *ConstantCallSite, ctx resolverContext) (any, error) {
	return callSite.DefaultValue(), nil
}

func (r *CallSiteResolver) visitFactory(callSite *FactoryCallSite, ctx resolverContext) (any, error) {
	return invokeFactory(callSite, ctx), nil
}

func (r *CallSiteResolver) visitContainer(callSite *ContainerCallSite, ctx resolverContext) (any, error) {
	return ctx.container(), nil
}

func (r *CallSiteResolver) visitScopeFactory(callSite *ScopeFactoryCallSite, ctx resolverContext) (any, error) {
	return scopeFactoryOf(ctx), nil
}

func (r *CallSiteResolver) visitSlice(callSite *SliceCallSite, ctx resolverContext) (any, error) {
	size := len(callSite.CallSites)
	s := reflect.MakeSlice(callSite.ServiceType(), size, size)

	for i, cs := range callSite.CallSites {
		v, err := r.visitCallSite(cs, ctx)
		if err != nil {
			return nil, err
		}
		s.Index(i).Set(reflectx.ValueOrZero(v, callSite.Elem))
	}

	return s.Interface(), nil
}

func newCallSiteResolver() *CallSiteResolver {
	r := &CallSiteResolver{}
	r.handler = r
	return r
}

// resolveCached returns the instance cached under key in scope, building it at most once.
// The lock of scope is taken unless the call chain already holds it.
func resolveCached(
	key ServiceCacheKey,
	ctx resolverContext,
	scope *ContainerEngineScope,
	build func(resolverContext) (any, error),
) (any, error) {
	if resolved, ok := scope.cached(key); ok {
		return resolved, nil
	}

	if ctx.Held.holds(scope) {
		return buildAndStore(key, resolverContext{Scope: scope, Held: ctx.Held, guard: ctx.guard}, scope, build)
	}

	scope.Locker.Lock()
	defer scope.Locker.Unlock()

	if resolved, ok := scope.cached(key); ok {
		return resolved, nil
	}

	hold := &heldLock{scope: scope, outer: ctx.Held}
	hold.active.Store(true)
	defer hold.active.Store(false)

	return buildAndStore(key, resolverContext{Scope: scope, Held: hold, guard: ctx.guard}, scope, build)
}

// buildAndStore runs with the lock of scope held by the call chain.
func buildAndStore(key ServiceCacheKey, ctx resolverContext, scope *ContainerEngineScope, build func(resolverContext) (any, error)) (any, error) {
	resolved, err := build(ctx)
	if err != nil {
		return nil, err
	}

	return scope.storeResolved(key, resolved)
}

func invokeConstructor(ctor *ConstructorInfo, inValues []reflect.Value) (any, error) {
	outValues := ctor.Call(inValues)

	switch len(outValues) {
	case 1:
		return outValues[0].Interface(), nil
	case 2:
		if outValues[1].IsNil() {
			return outValues[0].Interface(), nil
		}
		if err, ok := outValues[1].Interface().(error); ok {
			return nil, err
		}
		return nil, fmt.Errorf("the type of the second out parameter is not error")
	default:
		return nil, fmt.Errorf("unexpected output parameters")
	}
}

// invokeFactory calls the factory with the Container of the call chain.
func invokeFactory(callSite *FactoryCallSite, ctx resolverContext) any {
	return callSite.Factory(ctx.container())
}

// scopeFactoryOf returns the ScopeFactory of the call chain. Inside a cached build the
// scopes it creates resolve with the locks the chain holds.
func scopeFactoryOf(ctx resolverContext) ScopeFactory {
	if ctx.Held == nil {
		return ctx.Scope.RootContainer
	}
	return &chainView{scope: ctx.Scope, held: ctx.Held}
}
