// Package diagnostics provides observers for container events.
package diagnostics

import (
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dozm/di/v2"
	"github.com/dozm/di/v2/syncx"
)

// ZapObserver logs call site compilations and resolutions at debug level.
type ZapObserver struct {
	logger *zap.Logger
}

func NewZapObserver(logger *zap.Logger) *ZapObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapObserver{logger: logger.Named("di")}
}

func (o *ZapObserver) OnCallSiteCreated(serviceType reflect.Type, callSite di.CallSite) {
	if ce := o.logger.Check(zap.DebugLevel, "call site created"); ce != nil {
		ce.Write(
			zap.Stringer("service", serviceType),
			zap.Stringer("kind", callSite.Kind()),
			zap.Stringer("cache", callSite.Cache().Location),
		)
	}
}

func (o *ZapObserver) OnResolve(serviceType reflect.Type, scope di.Container) {
	if ce := o.logger.Check(zap.DebugLevel, "service resolved"); ce != nil {
		ce.Write(
			zap.Stringer("service", serviceType),
			zap.Bool("root", isRootScope(scope)),
		)
	}
}

func isRootScope(scope di.Container) bool {
	s, ok := scope.(*di.ContainerEngineScope)
	return ok && s.IsRootScope
}

// CountingObserver counts compilations and resolutions per service type.
type CountingObserver struct {
	compilations *syncx.Map[reflect.Type, *atomic.Int64]
	resolutions  *syncx.Map[reflect.Type, *atomic.Int64]
}

func NewCountingObserver() *CountingObserver {
	return &CountingObserver{
		compilations: syncx.NewMap[reflect.Type, *atomic.Int64](),
		resolutions:  syncx.NewMap[reflect.Type, *atomic.Int64](),
	}
}

func (o *CountingObserver) OnCallSiteCreated(serviceType reflect.Type, callSite di.CallSite) {
	increment(o.compilations, serviceType)
}

func (o *CountingObserver) OnResolve(serviceType reflect.Type, scope di.Container) {
	increment(o.resolutions, serviceType)
}

func (o *CountingObserver) Compilations(serviceType reflect.Type) int64 {
	return load(o.compilations, serviceType)
}

func (o *CountingObserver) Resolutions(serviceType reflect.Type) int64 {
	return load(o.resolutions, serviceType)
}

func increment(m *syncx.Map[reflect.Type, *atomic.Int64], key reflect.Type) {
	c, ok := m.Load(key)
	if !ok {
		c, _ = m.LoadOrStore(key, new(atomic.Int64))
	}
	c.Add(1)
}

func load(m *syncx.Map[reflect.Type, *atomic.Int64], key reflect.Type) int64 {
	if c, ok := m.Load(key); ok {
		return c.Load()
	}
	return 0
}

// Multi forwards every event to each of observers in order.
func Multi(observers ...di.Observer) di.Observer {
	return multiObserver(observers)
}

type multiObserver []di.Observer

func (m multiObserver) OnCallSiteCreated(serviceType reflect.Type, callSite di.CallSite) {
	for _, o := range m {
		o.OnCallSiteCreated(serviceType, callSite)
	}
}

func (m multiObserver) OnResolve(serviceType reflect.Type, scope di.Container) {
	for _, o := range m {
		o.OnResolve(serviceType, scope)
	}
}
