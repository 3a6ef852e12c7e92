package di

import (
	"reflect"

	"github.com/dozm/di/v2/reflectx"
	"github.com/dozm/di/v2/syncx"
)

// compiledNode resolves one call site without walking the tree.
type compiledNode func(ctx resolverContext) (any, error)

type compileContext struct {
	guard *syncx.StackGuard
}

func (c compileContext) stackGuard() *syncx.StackGuard {
	return c.guard
}

// compiledAccessorBuilder turns a call site tree into nested closures that behave like
// CallSiteResolver.
type compiledAccessorBuilder struct {
	callSiteVisitor[compileContext, compiledNode]
	maxStackDepth int
}

func (b *compiledAccessorBuilder) Build(callSite CallSite) (serviceAccessor, error) {
	node, err := b.visitCallSite(callSite, compileContext{guard: syncx.NewStackGuard(b.maxStackDepth)})
	if err != nil {
		return nil, err
	}

	return func(scope *ContainerEngineScope, held *heldLock) (any, error) {
		return node(newResolverContext(scope, held))
	}, nil
}

// guarded continues node on a fresh stack when the resolution is too deep.
func guarded(node compiledNode) compiledNode {
	var self compiledNode
	self = func(ctx resolverContext) (any, error) {
		if !ctx.guard.TryEnterOnCurrentStack() {
			return syncx.RunOnEmptyStack(ctx.guard, func() (any, error) { return self(ctx) })
		}
		defer ctx.guard.Leave()
		return node(ctx)
	}
	return self
}

func (b *compiledAccessorBuilder) visitNoCache(callSite CallSite, c compileContext) (compiledNode, error) {
	node, err := b.visitCallSiteMain(callSite, c)
	if err != nil {
		return nil, err
	}
	return guarded(node), nil
}

func (b *compiledAccessorBuilder) visitDisposeCache(callSite CallSite, c compileContext) (compiledNode, error) {
	node, err := b.visitCallSiteMain(callSite, c)
	if err != nil {
		return nil, err
	}

	return guarded(func(ctx resolverContext) (any, error) {
		v, err := node(ctx)
		if err != nil {
			return nil, err
		}
		if err = ctx.Scope.captureDisposable(v); err != nil {
			return nil, err
		}
		return v, nil
	}), nil
}

func (b *compiledAccessorBuilder) visitRootCache(callSite CallSite, c compileContext) (compiledNode, error) {
	node, err := b.visitCallSiteMain(callSite, c)
	if err != nil {
		return nil, err
	}

	key := callSite.Cache().Key
	return guarded(func(ctx resolverContext) (any, error) {
		return resolveCached(key, ctx, ctx.Scope.RootContainer.Root, node)
	}), nil
}

func (b *compiledAccessorBuilder) visitScopeCache(callSite CallSite, c compileContext) (compiledNode, error) {
	node, err := b.visitCallSiteMain(callSite, c)
	if err != nil {
		return nil, err
	}

	key := callSite.Cache().Key
	return guarded(func(ctx resolverContext) (any, error) {
		return resolveCached(key, ctx, ctx.Scope, node)
	}), nil
}

func (b *compiledAccessorBuilder) visitConstructor(callSite *ConstructorCallSite, c compileContext) (compiledNode, error) {
	params := make([]compiledNode, len(callSite.Parameters))
	for i, p := range callSite.Parameters {
		node, err := b.visitCallSite(p, c)
		if err != nil {
			return nil, err
		}
		params[i] = node
	}

	ctor := callSite.Ctor
	return func(ctx resolverContext) (any, error) {
		inValues := make([]reflect.Value, len(params))
		for i, p := range params {
			v, err := p(ctx)
			if err != nil {
				return nil, err
			}
			inValues[i] = reflectx.ValueOrZero(v, ctor.In[i])
		}
		return invokeConstructor(ctor, inValues)
	}, nil
}

func (b *compiledAccessorBuilder) visitConstant(callSite *ConstantCallSite, c compileContext) (compiledNode, error) {
	value := callSite.DefaultValue()
	return func(resolverContext) (any, error) { return value, nil }, nil
}

func (b *compiledAccessorBuilder) visitFactory(callSite *FactoryCallSite, c compileContext) (compiledNode, error) {
	return func(ctx resolverContext) (any, error) { return invokeFactory(callSite, ctx), nil }, nil
}

func (b *compiledAccessorBuilder) visitContainer(callSite *ContainerCallSite, c compileContext) (compiledNode, error) {
	return func(ctx resolverContext) (any, error) { return ctx.container(), nil }, nil
}

func (b *compiledAccessorBuilder) visitScopeFactory(callSite *ScopeFactoryCallSite, c compileContext) (compiledNode, error) {
	return func(ctx resolverContext) (any, error) { return scopeFactoryOf(ctx), nil }, nil
}

func (b *compiledAccessorBuilder) visitSlice(callSite *SliceCallSite, c compileContext) (compiledNode, error) {
	items := make([]compiledNode, len(callSite.CallSites))
	for i, cs := range callSite.CallSites {
		node, err := b.visitCallSite(cs, c)
		if err != nil {
			return nil, err
		}
		items[i] = node
	}

	sliceType, elem := callSite.ServiceType(), callSite.Elem
	return func(ctx resolverContext) (any, error) {
		s := reflect.MakeSlice(sliceType, len(items), len(items))
		for i, item := range items {
			v, err := item(ctx)
			if err != nil {
				return nil, err
			}
			s.Index(i).Set(reflectx.ValueOrZero(v, elem))
		}
		return s.Interface(), nil
	}, nil
}

func newCompiledAccessorBuilder(maxStackDepth int) *compiledAccessorBuilder {
	b := &compiledAccessorBuilder{maxStackDepth: maxStackDepth}
	b.handler = b
	return b
}
