package di

import (
	"reflect"

	"github.com/dozm/di/v2/errorx"
	"github.com/dozm/di/v2/reflectx"
	"github.com/dozm/di/v2/syncx"
)

type ContainerBuilder interface {
	Add(...*Descriptor)
	Contains(serviceType reflect.Type) bool
	Remove(serviceType reflect.Type)
	Descriptors() []*Descriptor
	Build() Container
	TryBuild() (Container, error)
	ConfigureOptions(func(*Options))
}

type containerBuilder struct {
	descriptors          []*Descriptor
	optionsConfigurators []func(*Options)
}

func (b *containerBuilder) ConfigureOptions(f func(*Options)) {
	b.optionsConfigurators = append(b.optionsConfigurators, f)
}

func (b *containerBuilder) Add(d ...*Descriptor) {
	b.descriptors = append(b.descriptors, d...)
}

func (b *containerBuilder) Contains(serviceType reflect.Type) bool {
	for _, d := range b.descriptors {
		if d.ServiceType == serviceType {
			return true
		}
	}
	return false
}

// Remove removes every registration of serviceType.
func (b *containerBuilder) Remove(serviceType reflect.Type) {
	kept := b.descriptors[:0]
	for _, d := range b.descriptors {
		if d.ServiceType != serviceType {
			kept = append(kept, d)
		}
	}
	clear(b.descriptors[len(kept):])
	b.descriptors = kept
}

func (b *containerBuilder) Descriptors() []*Descriptor {
	d := make([]*Descriptor, len(b.descriptors))
	copy(d, b.descriptors)
	return d
}

func (b *containerBuilder) builtInServices(c *container) {
	csf := c.CallSiteFactory

	csf.Add(ContainerType, &ContainerCallSite{})
	csf.Add(ScopeFactoryType, &ScopeFactoryCallSite{})
	csf.Add(IsServiceType, newConstantCallSite(IsServiceType, csf))
}

func (b *containerBuilder) configureOptions(options *Options) {
	for _, f := range b.optionsConfigurators {
		f(options)
	}
	if options.MaxStackDepth <= 0 {
		options.MaxStackDepth = syncx.DefaultMaxStackDepth
	}
}

// Build builds the container and panics when the registrations are invalid.
func (b *containerBuilder) Build() Container {
	c, err := b.TryBuild()
	if err != nil {
		panic(err)
	}
	return c
}

func (b *containerBuilder) TryBuild() (Container, error) {
	options := DefaultOptions()
	b.configureOptions(&options)

	callSiteFactory, err := newCallSiteFactory(b.descriptors, options.MaxStackDepth)
	if err != nil {
		return nil, err
	}

	c := &container{
		CallSiteFactory:  callSiteFactory,
		realizedServices: syncx.NewMap[reflect.Type, serviceAccessor](),
		options:          options,
	}

	c.Root = newEngineScope(c, true, nil)
	c.engine = c.createEngine()

	b.builtInServices(c)

	if options.ValidateScopes {
		c.callSiteValidator = newCallSiteValidator(options.MaxStackDepth)
	}

	if options.ValidateOnBuild {
		errs := &errorx.AggregateError{}
		for _, d := range b.descriptors {
			if d.IsOpenGeneric() {
				continue
			}
			if e := c.validateService(d); e != nil {
				errs.Add(e)
			}
		}

		if len(errs.Errors) > 0 {
			return nil, errs
		}
	}

	return c, nil
}

// Create a ContainerBuilder
func Builder() ContainerBuilder {
	return &containerBuilder{}
}

// New a descriptor with instance
func Instance[T any](instance any) *Descriptor {
	return NewInstanceDescriptor(reflectx.TypeOf[T](), instance)
}

// New a transient constructor descriptor.
// Passing several constructors lets the container pick the one it can satisfy.
func Transient[T any](ctor any, ctors ...any) *Descriptor {
	return NewConstructorDescriptor(reflectx.TypeOf[T](), Lifetime_Transient, append([]any{ctor}, ctors...)...)
}

// New a scoped constructor descriptor
func Scoped[T any](ctor any, ctors ...any) *Descriptor {
	return NewConstructorDescriptor(reflectx.TypeOf[T](), Lifetime_Scoped, append([]any{ctor}, ctors...)...)
}

// New a singleton constructor descriptor
func Singleton[T any](ctor any, ctors ...any) *Descriptor {
	return NewConstructorDescriptor(reflectx.TypeOf[T](), Lifetime_Singleton, append([]any{ctor}, ctors...)...)
}

// Implementation describes the service T implemented by TImpl, built by one of ctors.
func Implementation[T any, TImpl any](lifetime Lifetime, ctors ...any) *Descriptor {
	return NewTypeDescriptor(reflectx.TypeOf[T](), reflectx.TypeOf[TImpl](), lifetime, ctors...)
}

// Close declares the constructor of the instantiation T of an open generic service.
func Close[T any](ctor any) Closing {
	return Closing{ServiceType: reflectx.TypeOf[T](), Ctor: NewConstructor(ctor)}
}

// OpenGeneric registers the open generic service of which TService is an instantiation,
// implemented by the open generic type of which TImpl is an instantiation.
//
//	di.OpenGeneric[Repo[any], *MemoryRepo[any]](di.Lifetime_Scoped,
//		di.Close[Repo[int]](NewMemoryRepo[int]),
//		di.Close[Repo[string]](NewMemoryRepo[string]))
func OpenGeneric[TService any, TImpl any](lifetime Lifetime, closings ...Closing) *Descriptor {
	return NewOpenGenericDescriptor(reflectx.TypeOf[TService](), reflectx.TypeOf[TImpl](), lifetime, closings...)
}

// Add a transient service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// ctor is the constructor of the service T.
func AddTransient[T any](cb ContainerBuilder, ctor any, ctors ...any) {
	cb.Add(Transient[T](ctor, ctors...))
}

// Add a scoped service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// ctor is the constructor of the service T.
func AddScoped[T any](cb ContainerBuilder, ctor any, ctors ...any) {
	cb.Add(Scoped[T](ctor, ctors...))
}

// Add a singleton service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// ctor is the constructor of the service T.
func AddSingleton[T any](cb ContainerBuilder, ctor any, ctors ...any) {
	cb.Add(Singleton[T](ctor, ctors...))
}

// Add an instance service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// the instance must be assignable to the service T.
func AddInstance[T any](cb ContainerBuilder, instance any) {
	cb.Add(Instance[T](instance))
}

func AddOpenGeneric[TService any, TImpl any](cb ContainerBuilder, lifetime Lifetime, closings ...Closing) {
	cb.Add(OpenGeneric[TService, TImpl](lifetime, closings...))
}

// New a transient factory descriptor
func TransientFactory[T any](factory Factory) *Descriptor {
	return NewFactoryDescriptor(reflectx.TypeOf[T](), Lifetime_Transient, factory)
}

// New a scoped factory descriptor
func ScopedFactory[T any](factory Factory) *Descriptor {
	return NewFactoryDescriptor(reflectx.TypeOf[T](), Lifetime_Scoped, factory)
}

// New a singleton factory descriptor
func SingletonFactory[T any](factory Factory) *Descriptor {
	return NewFactoryDescriptor(reflectx.TypeOf[T](), Lifetime_Singleton, factory)
}

func AddTransientFactory[T any](cb ContainerBuilder, factory Factory) {
	cb.Add(TransientFactory[T](factory))
}

func AddScopedFactory[T any](cb ContainerBuilder, factory Factory) {
	cb.Add(ScopedFactory[T](factory))
}

func AddSingletonFactory[T any](cb ContainerBuilder, factory Factory) {
	cb.Add(SingletonFactory[T](factory))
}
