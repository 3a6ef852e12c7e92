package di

import (
	"fmt"
	"reflect"
)

type CallSiteKind byte

const (
	CallSiteKind_Constructor CallSiteKind = iota
	CallSiteKind_Constant
	CallSiteKind_Factory
	CallSiteKind_Slice
	CallSiteKind_Container
	CallSiteKind_ScopeFactory
)

func (k CallSiteKind) String() string {
	switch k {
	case CallSiteKind_Constructor:
		return "Constructor"
	case CallSiteKind_Constant:
		return "Constant"
	case CallSiteKind_Factory:
		return "Factory"
	case CallSiteKind_Slice:
		return "Slice"
	case CallSiteKind_Container:
		return "Container"
	case CallSiteKind_ScopeFactory:
		return "ScopeFactory"
	default:
		return fmt.Sprintf("CallSiteKind(%d)", byte(k))
	}
}

// CallSite describes how to obtain one service instance. Call sites are immutable
// once built and shared by all scopes of a container.
type CallSite interface {
	ServiceType() reflect.Type
	Kind() CallSiteKind
	Cache() ResultCache
}

//
type ConstantCallSite struct {
	serviceType reflect.Type
	value       any
}

func (cs *ConstantCallSite) DefaultValue() any {
	return cs.value
}

func (cs *ConstantCallSite) ServiceType() reflect.Type {
	return cs.serviceType
}

func (cs *ConstantCallSite) Kind() CallSiteKind {
	return CallSiteKind_Constant
}

func (cs *ConstantCallSite) Cache() ResultCache {
	return NoneResultCache
}

func newConstantCallSite(serviceType reflect.Type, defaultValue any) *ConstantCallSite {
	return &ConstantCallSite{
		serviceType: serviceType,
		value:       defaultValue,
	}
}

//
type FactoryCallSite struct {
	serviceType reflect.Type
	Factory     Factory
	cache       ResultCache
}

func (cs *FactoryCallSite) ServiceType() reflect.Type {
	return cs.serviceType
}

func (cs *FactoryCallSite) Kind() CallSiteKind {
	return CallSiteKind_Factory
}

func (cs *FactoryCallSite) Cache() ResultCache {
	return cs.cache
}

func newFactoryCallSite(cache ResultCache, serviceType reflect.Type, factory Factory) *FactoryCallSite {
	return &FactoryCallSite{
		serviceType: serviceType,
		Factory:     factory,
		cache:       cache,
	}
}

//
type ConstructorCallSite struct {
	serviceType        reflect.Type
	ImplementationType reflect.Type
	Ctor               *ConstructorInfo
	Parameters         []CallSite
	cache              ResultCache
}

func (cs *ConstructorCallSite) ServiceType() reflect.Type {
	return cs.serviceType
}

func (cs *ConstructorCallSite) Kind() CallSiteKind {
	return CallSiteKind_Constructor
}

func (cs *ConstructorCallSite) Cache() ResultCache {
	return cs.cache
}

func newConstructorCallSite(cache ResultCache, serviceType reflect.Type, ctor *ConstructorInfo, parameters []CallSite) *ConstructorCallSite {
	return &ConstructorCallSite{
		cache:              cache,
		serviceType:        serviceType,
		ImplementationType: ctor.ImplementationType(),
		Ctor:               ctor,
		Parameters:         parameters,
	}
}

// ContainerCallSite resolves to the scope the service is requested from.
type ContainerCallSite struct{}

func (cs *ContainerCallSite) ServiceType() reflect.Type {
	return ContainerType
}

func (cs *ContainerCallSite) Kind() CallSiteKind {
	return CallSiteKind_Container
}

func (cs *ContainerCallSite) Cache() ResultCache {
	return NoneResultCache
}

// ScopeFactoryCallSite resolves to the container that owns the requesting scope.
type ScopeFactoryCallSite struct{}

func (cs *ScopeFactoryCallSite) ServiceType() reflect.Type {
	return ScopeFactoryType
}

func (cs *ScopeFactoryCallSite) Kind() CallSiteKind {
	return CallSiteKind_ScopeFactory
}

func (cs *ScopeFactoryCallSite) Cache() ResultCache {
	return NoneResultCache
}

// SliceCallSite resolves every registration of Elem, in registration order.
type SliceCallSite struct {
	serviceType reflect.Type
	Elem        reflect.Type
	CallSites   []CallSite
}

func (cs *SliceCallSite) Cache() ResultCache {
	return NoneResultCache
}

func (cs *SliceCallSite) ServiceType() reflect.Type {
	return cs.serviceType
}

func (cs *SliceCallSite) Kind() CallSiteKind {
	return CallSiteKind_Slice
}

func newSliceCallSite(elem reflect.Type, callSites []CallSite) *SliceCallSite {
	return &SliceCallSite{
		Elem:        elem,
		CallSites:   callSites,
		serviceType: reflect.SliceOf(elem),
	}
}
