package di

import (
	"reflect"
	"sync/atomic"

	"github.com/dozm/di/v2/errorx"
	"github.com/dozm/di/v2/reflectx"
	"github.com/dozm/di/v2/syncx"
)

var ContainerType = reflectx.TypeOf[Container]()
var ScopeFactoryType = reflectx.TypeOf[ScopeFactory]()
var IsServiceType = reflectx.TypeOf[IsService]()

type EngineMode byte

const (
	// call sites are walked on every resolution
	Engine_Runtime EngineMode = iota
	// a type resolved twice gets a compiled accessor built in the background
	Engine_Dynamic
)

// Observer receives diagnostics events. It must not affect resolution;
// a panicking observer is ignored.
type Observer interface {
	OnCallSiteCreated(serviceType reflect.Type, callSite CallSite)
	OnResolve(serviceType reflect.Type, scope Container)
}

// Container options.
type Options struct {
	ValidateScopes  bool
	ValidateOnBuild bool
	Engine          EngineMode
	// recursion depth after which compilation and resolution continue on a new goroutine
	MaxStackDepth int
	Observer      Observer
}

// Get default container options.
func DefaultOptions() Options {
	return Options{
		Engine:        Engine_Runtime,
		MaxStackDepth: syncx.DefaultMaxStackDepth,
	}
}

type serviceAccessor func(scope *ContainerEngineScope, held *heldLock) (any, error)

func absentService(*ContainerEngineScope, *heldLock) (any, error) {
	return nil, nil
}

// Container implementation
type container struct {
	Root              *ContainerEngineScope
	CallSiteFactory   *CallSiteFactory
	engine            containerEngine
	realizedServices  *syncx.Map[reflect.Type, serviceAccessor]
	disposed          atomic.Bool
	callSiteValidator *CallSiteValidator
	options           Options
}

func (c *container) Get(serviceType reflect.Type) (any, error) {
	return c.getWithScope(serviceType, c.Root, nil)
}

func (c *container) IsService(serviceType reflect.Type) bool {
	return c.CallSiteFactory.IsService(serviceType)
}

func (c *container) CreateScope() Scope {
	return c.createScope(nil)
}

func (c *container) createScope(inherited *heldLock) Scope {
	if c.disposed.Load() {
		panic(&errorx.ObjectDisposedError{Message: ContainerType.String()})
	}

	return newEngineScope(c, false, inherited)
}

// GetWithScope resolves serviceType for scope.
func (c *container) GetWithScope(serviceType reflect.Type, scope *ContainerEngineScope) (any, error) {
	return c.getWithScope(serviceType, scope, nil)
}

func (c *container) getWithScope(serviceType reflect.Type, scope *ContainerEngineScope, held *heldLock) (result any, err error) {
	if c.disposed.Load() {
		return nil, &errorx.ObjectDisposedError{Message: ContainerType.String()}
	}

	defer func() {
		if p := recover(); p != nil {
			result, err = nil, panicError(p)
		}
	}()

	accessor, ok := c.realizedServices.Load(serviceType)
	if !ok {
		accessor, err = c.createServiceAccessor(serviceType, held)
		if err != nil {
			return nil, err
		}
		accessor, _ = c.realizedServices.LoadOrStore(serviceType, accessor)
	}

	if c.callSiteValidator != nil {
		if err = c.callSiteValidator.ValidateResolution(serviceType, scope, c.Root); err != nil {
			return nil, err
		}
	}

	c.onResolve(serviceType, scope)

	return accessor(scope, held)
}

func (c *container) validateService(d *Descriptor) error {
	callSite, err := c.CallSiteFactory.GetCallSiteByDescriptor(d, c.CallSiteFactory.newChain())
	if err != nil {
		return err
	}
	if c.callSiteValidator != nil {
		return c.callSiteValidator.ValidateCallSite(callSite)
	}
	return nil
}

// Dispose disposes the root scope and makes the container unusable.
func (c *container) Dispose() error {
	c.markDisposed()
	return c.Root.Dispose()
}

func (c *container) markDisposed() {
	c.disposed.Store(true)
}

func (c *container) IsDisposed() bool {
	return c.disposed.Load()
}

func (c *container) createEngine() containerEngine {
	if c.options.Engine == Engine_Dynamic {
		return newDynamicEngine(c)
	}
	return newRuntimeEngine()
}

func (c *container) createServiceAccessor(serviceType reflect.Type, held *heldLock) (serviceAccessor, error) {
	callSite, err := c.CallSiteFactory.GetCallSite(serviceType, c.CallSiteFactory.newChain())
	if err != nil {
		return nil, err
	}

	if callSite == nil {
		return absentService, nil
	}

	if c.callSiteValidator != nil {
		if err := c.callSiteValidator.ValidateCallSite(callSite); err != nil {
			return nil, err
		}
	}

	c.onCallSiteCreated(serviceType, callSite)

	if callSite.Cache().Location == CacheLocation_Root {
		value, err := CallSiteResolverInstance.resolve(callSite, c.Root, held)
		if err != nil {
			return nil, err
		}
		return func(*ContainerEngineScope, *heldLock) (any, error) { return value, nil }, nil
	}

	return c.engine.RealizeService(serviceType, callSite), nil
}

func (c *container) ReplaceServiceAccessor(serviceType reflect.Type, accessor serviceAccessor) {
	c.realizedServices.Store(serviceType, accessor)
}

func (c *container) onCallSiteCreated(serviceType reflect.Type, callSite CallSite) {
	if o := c.options.Observer; o != nil {
		defer func() { _ = recover() }()
		o.OnCallSiteCreated(serviceType, callSite)
	}
}

func (c *container) onResolve(serviceType reflect.Type, scope *ContainerEngineScope) {
	if o := c.options.Observer; o != nil {
		defer func() { _ = recover() }()
		o.OnResolve(serviceType, scope)
	}
}
