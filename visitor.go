package di

import (
	"fmt"

	"github.com/dozm/di/v2/syncx"
)

type visitorContext interface {
	stackGuard() *syncx.StackGuard
}

// callSiteHandler supplies what visiting each cache location and call site kind means.
type callSiteHandler[TArg visitorContext, TResult any] interface {
	visitRootCache(CallSite, TArg) (TResult, error)
	visitScopeCache(CallSite, TArg) (TResult, error)
	visitDisposeCache(CallSite, TArg) (TResult, error)
	visitNoCache(CallSite, TArg) (TResult, error)

	visitConstructor(*ConstructorCallSite, TArg) (TResult, error)
	visitConstant(*ConstantCallSite, TArg) (TResult, error)
	visitFactory(*FactoryCallSite, TArg) (TResult, error)
	visitSlice(*SliceCallSite, TArg) (TResult, error)
	visitContainer(*ContainerCallSite, TArg) (TResult, error)
	visitScopeFactory(*ScopeFactoryCallSite, TArg) (TResult, error)
}

// callSiteVisitor routes a call site to its handler, first by cache location then by kind.
type callSiteVisitor[TArg visitorContext, TResult any] struct {
	handler callSiteHandler[TArg, TResult]
}

func (v *callSiteVisitor[TArg, TResult]) visitCallSite(callSite CallSite, arg TArg) (TResult, error) {
	guard := arg.stackGuard()
	if !guard.TryEnterOnCurrentStack() {
		return syncx.RunOnEmptyStack(guard, func() (TResult, error) {
			return v.visitCallSite(callSite, arg)
		})
	}
	defer guard.Leave()

	switch callSite.Cache().Location {
	case CacheLocation_Root:
		return v.handler.visitRootCache(callSite, arg)
	case CacheLocation_Scope:
		return v.handler.visitScopeCache(callSite, arg)
	case CacheLocation_Dispose:
		return v.handler.visitDisposeCache(callSite, arg)
	case CacheLocation_None:
		return v.handler.visitNoCache(callSite, arg)
	default:
		var zero TResult
		return zero, fmt.Errorf("unknown cache location '%v'", callSite.Cache().Location)
	}
}

func (v *callSiteVisitor[TArg, TResult]) visitCallSiteMain(callSite CallSite, arg TArg) (TResult, error) {
	switch cs := callSite.(type) {
	case *ConstructorCallSite:
		return v.handler.visitConstructor(cs, arg)
	case *ConstantCallSite:
		return v.handler.visitConstant(cs, arg)
	case *FactoryCallSite:
		return v.handler.visitFactory(cs, arg)
	case *SliceCallSite:
		return v.handler.visitSlice(cs, arg)
	case *ContainerCallSite:
		return v.handler.visitContainer(cs, arg)
	case *ScopeFactoryCallSite:
		return v.handler.visitScopeFactory(cs, arg)
	default:
		var zero TResult
		return zero, fmt.Errorf("unknown call site kind '%v'", callSite.Kind())
	}
}
