package di

import (
	"reflect"

	"github.com/dozm/di/v2/errorx"
	"github.com/dozm/di/v2/syncx"
)

type chainItem struct {
	Order              int
	ImplementationType reflect.Type
}

// callSiteChain holds the services being compiled by one top-level request.
type callSiteChain struct {
	items map[reflect.Type]chainItem
	order []reflect.Type
	guard *syncx.StackGuard
}

func (c *callSiteChain) CheckCircularDependency(serviceType reflect.Type) error {
	if _, ok := c.items[serviceType]; ok {
		return c.createCircularDependencyError(serviceType)
	}
	return nil
}

func (c *callSiteChain) Remove(serviceType reflect.Type) {
	item, ok := c.items[serviceType]
	if !ok {
		return
	}
	delete(c.items, serviceType)
	c.order = c.order[:item.Order]
}

// the implementation type is nil when the serviceType is a slice
func (c *callSiteChain) Add(serviceType reflect.Type, implementationType reflect.Type) {
	c.items[serviceType] = chainItem{
		Order:              len(c.order),
		ImplementationType: implementationType,
	}
	c.order = append(c.order, serviceType)
}

func (c *callSiteChain) createCircularDependencyError(t reflect.Type) error {
	chain := make([]reflect.Type, len(c.order))
	copy(chain, c.order)
	return &errorx.CircularDependencyError{ServiceType: t, Chain: chain}
}

func newCallSiteChain(maxStackDepth int) *callSiteChain {
	return &callSiteChain{
		items: make(map[reflect.Type]chainItem),
		guard: syncx.NewStackGuard(maxStackDepth),
	}
}
