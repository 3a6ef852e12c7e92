package di

import (
	"fmt"
	"reflect"

	"github.com/dozm/di/v2/errorx"
	"github.com/dozm/di/v2/syncx"
)

type validatorState struct {
	Singleton CallSite
	guard     *syncx.StackGuard
}

func (s validatorState) stackGuard() *syncx.StackGuard {
	return s.guard
}

// CallSiteValidator checks call sites for scoped services captured by singletons and
// remembers which services must not be resolved from the root scope.
type CallSiteValidator struct {
	callSiteVisitor[validatorState, reflect.Type]
	scopedServices *syncx.Map[reflect.Type, reflect.Type]
	maxStackDepth  int
}

func (v *CallSiteValidator) ValidateCallSite(callSite CallSite) error {
	scoped, err := v.visitCallSite(callSite, validatorState{guard: syncx.NewStackGuard(v.maxStackDepth)})
	if err != nil {
		return err
	}

	if scoped != nil {
		v.scopedServices.Store(callSite.ServiceType(), scoped)
	}

	return nil
}

func (v *CallSiteValidator) ValidateResolution(serviceType reflect.Type, scope *ContainerEngineScope, rootScope *ContainerEngineScope) (err error) {
	if scope != rootScope {
		return
	}

	scopedService, ok := v.scopedServices.Load(serviceType)
	if !ok {
		return
	}
	if serviceType == scopedService {
		return &errorx.ScopedServiceFromRootError{
			Message: fmt.Sprintf("cannot resolve scoped service '%v' from root scope", serviceType)}
	}

	return &errorx.ScopedServiceFromRootError{
		Message: fmt.Sprintf("cannot resolve '%v' from root scope because it requires scoped service '%v'", serviceType, scopedService),
	}
}

func (v *CallSiteValidator) visitConstructor(callSite *ConstructorCallSite, state validatorState) (reflect.Type, error) {
	return v.visitAll(callSite.Parameters, state)
}

func (v *CallSiteValidator) visitSlice(callSite *SliceCallSite, state validatorState) (reflect.Type, error) {
	return v.visitAll(callSite.CallSites, state)
}

// visitAll returns the first scoped service found among callSites.
func (v *CallSiteValidator) visitAll(callSites []CallSite, state validatorState) (reflect.Type, error) {
	var result reflect.Type
	for _, cs := range callSites {
		scoped, err := v.visitCallSite(cs, state)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = scoped
		}
	}
	return result, nil
}

func (v *CallSiteValidator) visitRootCache(singletonCallSite CallSite, state validatorState) (reflect.Type, error) {
	state.Singleton = singletonCallSite
	return v.visitCallSiteMain(singletonCallSite, state)
}

func (v *CallSiteValidator) visitScopeCache(scopedCallSite CallSite, state validatorState) (reflect.Type, error) {
	if state.Singleton != nil {
		return nil, &errorx.ScopedServiceFromRootError{
			Message: fmt.Sprintf("cannot consume scoped service '%v' from singleton '%v'",
				scopedCallSite.ServiceType(),
				state.Singleton.ServiceType()),
		}
	}

	if _, err := v.visitCallSiteMain(scopedCallSite, state); err != nil {
		return nil, err
	}

	return scopedCallSite.ServiceType(), nil
}

func (v *CallSiteValidator) visitDisposeCache(callSite CallSite, state validatorState) (reflect.Type, error) {
	return v.visitCallSiteMain(callSite, state)
}

func (v *CallSiteValidator) visitNoCache(callSite CallSite, state validatorState) (reflect.Type, error) {
	return v.visitCallSiteMain(callSite, state)
}

func (v *CallSiteValidator) visitConstant(callSite *ConstantCallSite, state validatorState) (reflect.Type, error) {
	return nil, nil
}

func (v *CallSiteValidator) visitFactory(callSite *FactoryCallSite, state validatorState) (reflect.Type, error) {
	return nil, nil
}

func (v *CallSiteValidator) visitContainer(callSite *ContainerCallSite, state validatorState) (reflect.Type, error) {
	return nil, nil
}

func (v *CallSiteValidator) visitScopeFactory(callSite *ScopeFactoryCallSite, state validatorState) (reflect.Type, error) {
	return nil, nil
}

func newCallSiteValidator(maxStackDepth int) *CallSiteValidator {
	v := &CallSiteValidator{
		scopedServices: syncx.NewMap[reflect.Type, reflect.Type](),
		maxStackDepth:  maxStackDepth,
	}
	v.handler = v
	return v
}
