package di

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dozm/di/v2/errorx"
	"github.com/dozm/di/v2/reflectx"
)

type Lifetime byte

const (
	Lifetime_Singleton Lifetime = iota
	Lifetime_Scoped
	Lifetime_Transient
)

func (l Lifetime) String() string {
	switch l {
	case Lifetime_Singleton:
		return "Singleton"
	case Lifetime_Scoped:
		return "Scoped"
	case Lifetime_Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Lifetime(%d)", byte(l))
	}
}

type Factory func(Container) any

type ConstructorInfo struct {
	FuncType  reflect.Type
	FuncValue reflect.Value
	// input parameter types
	In []reflect.Type
	// output parameter types
	Out []reflect.Type
	// default values of parameters that may be left unresolved, by parameter index
	Defaults map[int]any
}

func (c *ConstructorInfo) Call(params []reflect.Value) []reflect.Value {
	return c.FuncValue.Call(params)
}

// WithDefault declares the value used for the parameter at index when its type cannot be resolved.
// A nil value stands for the zero value of the parameter type.
func (c *ConstructorInfo) WithDefault(index int, value any) *ConstructorInfo {
	if index < 0 || index >= len(c.In) {
		panic(errorx.NewArgumentError(fmt.Sprintf("parameter index %d out of range for %v", index, c.FuncType)))
	}
	if value != nil && !reflect.TypeOf(value).AssignableTo(c.In[index]) {
		panic(&errorx.TypeIncompatibilityError{To: c.In[index], From: reflect.TypeOf(value)})
	}
	if c.Defaults == nil {
		c.Defaults = make(map[int]any)
	}
	c.Defaults[index] = value
	return c
}

func (c *ConstructorInfo) DefaultValue(index int) (any, bool) {
	v, ok := c.Defaults[index]
	return v, ok
}

// ImplementationType is the type produced by the constructor.
func (c *ConstructorInfo) ImplementationType() reflect.Type {
	return c.Out[0]
}

func (c *ConstructorInfo) String() string {
	return fmt.Sprintf("%v %v", reflectx.GetFuncName(c.FuncValue.Interface()), c.FuncType)
}

// NewConstructor describes ctor, a function returning the service and an optional error.
func NewConstructor(ctor any) *ConstructorInfo {
	if ci, ok := ctor.(*ConstructorInfo); ok {
		return ci
	}

	ft := reflect.TypeOf(ctor)
	if ft == nil || ft.Kind() != reflect.Func {
		panic(&errorx.FuncSignatureError{Message: fmt.Sprintf("the constructor '%v' is not a function", ft)})
	}

	return &ConstructorInfo{
		FuncValue: reflect.ValueOf(ctor),
		FuncType:  ft,
		In:        reflectx.GetInParameters(ft),
		Out:       reflectx.GetOutParameters(ft),
	}
}

// Closing is the constructor used for one instantiation of an open generic service.
type Closing struct {
	ServiceType reflect.Type
	Ctor        *ConstructorInfo
}

// OpenGenericSource pairs an open generic service definition with an open generic implementation.
type OpenGenericSource struct {
	Service        reflectx.GenericDef
	Implementation reflectx.GenericDef
	Closings       map[reflect.Type]*ConstructorInfo
}

// Close returns the constructor for the closed service type, or nil when no closing was declared.
func (s *OpenGenericSource) Close(serviceType reflect.Type) *ConstructorInfo {
	return s.Closings[serviceType]
}

// service descriptor
type Descriptor struct {
	// nil for open generic registrations
	ServiceType reflect.Type
	Lifetime    Lifetime

	// constructible type source
	ImplementationType reflect.Type
	Ctors              []*ConstructorInfo

	Instance    any
	Factory     Factory
	OpenGeneric *OpenGenericSource
}

func (d *Descriptor) IsOpenGeneric() bool {
	return d.OpenGeneric != nil
}

// sourceCount is the number of sources set on a closed descriptor.
func (d *Descriptor) sourceCount() int {
	n := 0
	if d.Instance != nil {
		n++
	}
	if d.Factory != nil {
		n++
	}
	if d.ImplementationType != nil {
		n++
	}
	return n
}

func (d *Descriptor) String() string {
	var sb strings.Builder
	if d.OpenGeneric != nil {
		fmt.Fprintf(&sb, "ServiceType: %v Lifetime: %v OpenGeneric: %v", d.OpenGeneric.Service, d.Lifetime, d.OpenGeneric.Implementation)
		return sb.String()
	}

	fmt.Fprintf(&sb, "ServiceType: %v Lifetime: %v ", d.ServiceType, d.Lifetime)
	switch {
	case d.Instance != nil:
		fmt.Fprintf(&sb, "Instance: %v", d.Instance)
	case d.Factory != nil:
		sb.WriteString("Factory")
	case d.ImplementationType != nil:
		fmt.Fprintf(&sb, "Implementation: %v Constructors: %d", d.ImplementationType, len(d.Ctors))
	}

	return sb.String()
}

func NewInstanceDescriptor(serviceType reflect.Type, instance any) *Descriptor {
	if instance == nil {
		panic(errorx.NewArgumentNilError("instance"))
	}
	if err := instanceAssignable(instance, serviceType); err != nil {
		panic(err)
	}

	return &Descriptor{
		ServiceType: serviceType,
		Lifetime:    Lifetime_Singleton,
		Instance:    instance,
	}
}

// NewConstructorDescriptor describes a service built by one of the constructors ctors.
// All constructors must produce the same implementation type.
func NewConstructorDescriptor(serviceType reflect.Type, lifetime Lifetime, ctors ...any) *Descriptor {
	if len(ctors) == 0 {
		panic(errorx.NewArgumentError(fmt.Sprintf("no constructor given for service '%v'", serviceType)))
	}

	infos := make([]*ConstructorInfo, len(ctors))
	for i, ctor := range ctors {
		ci := NewConstructor(ctor)
		if err := checkConstructor(ci, serviceType); err != nil {
			panic(err)
		}
		if i > 0 && ci.ImplementationType() != infos[0].ImplementationType() {
			panic(errorx.NewArgumentError(fmt.Sprintf(
				"constructors of the service '%v' produce different types '%v' and '%v'",
				serviceType, infos[0].ImplementationType(), ci.ImplementationType())))
		}
		infos[i] = ci
	}

	return &Descriptor{
		ServiceType:        serviceType,
		Lifetime:           lifetime,
		ImplementationType: infos[0].ImplementationType(),
		Ctors:              infos,
	}
}

// NewTypeDescriptor describes a service implemented by implementationType.
// ctors may be empty; such a registration fails when it is resolved.
func NewTypeDescriptor(serviceType reflect.Type, implementationType reflect.Type, lifetime Lifetime, ctors ...any) *Descriptor {
	infos := make([]*ConstructorInfo, len(ctors))
	for i, ctor := range ctors {
		ci := NewConstructor(ctor)
		if err := checkConstructor(ci, serviceType); err != nil {
			panic(err)
		}
		if ci.ImplementationType() != implementationType {
			panic(errorx.NewArgumentError(fmt.Sprintf(
				"the constructor '%v' does not produce '%v'", ci.FuncType, implementationType)))
		}
		infos[i] = ci
	}

	return &Descriptor{
		ServiceType:        serviceType,
		Lifetime:           lifetime,
		ImplementationType: implementationType,
		Ctors:              infos,
	}
}

func checkConstructor(ctor *ConstructorInfo, serviceType reflect.Type) (err error) {
	if ctor.FuncType.Kind() != reflect.Func {
		return &errorx.FuncSignatureError{Message: fmt.Sprintf("the constructor of the service '%v' is not a function", serviceType)}
	}

	out := ctor.Out
	numOut := len(out)
	if (numOut == 0 || numOut > 2) ||
		!out[0].AssignableTo(serviceType) ||
		(numOut == 2 && !reflectx.IsErrorType(out[1])) {
		return &errorx.FuncSignatureError{Message: fmt.Sprintf("the constructor must returns a '%v' and an optional error", serviceType)}
	}

	return
}

func instanceAssignable(instance any, to reflect.Type) (err error) {
	if t := reflect.TypeOf(instance); !t.AssignableTo(to) {
		err = &errorx.TypeIncompatibilityError{To: to, From: t}
	}
	return
}

func NewFactoryDescriptor(serviceType reflect.Type, lifetime Lifetime, factory Factory) *Descriptor {
	if factory == nil {
		panic(errorx.NewArgumentNilError("factory"))
	}

	return &Descriptor{
		ServiceType: serviceType,
		Lifetime:    lifetime,
		Factory:     factory,
	}
}

// NewOpenGenericDescriptor registers the open generic service of which serviceSample is an
// instantiation, implemented by the open generic type of which implementationSample is an
// instantiation. The sample type arguments are irrelevant, only the definitions are kept.
// Definition mismatches are reported when the container is built.
func NewOpenGenericDescriptor(serviceSample, implementationSample reflect.Type, lifetime Lifetime, closings ...Closing) *Descriptor {
	serviceDef, _, _ := reflectx.GenericDefOf(serviceSample)
	implDef, _, _ := reflectx.GenericDefOf(implementationSample)
	if serviceDef.Name == "" {
		serviceDef = reflectx.GenericDef{PkgPath: serviceSample.PkgPath(), Name: serviceSample.String(), Kind: serviceSample.Kind()}
	}
	if implDef.Name == "" {
		implDef = reflectx.GenericDef{PkgPath: implementationSample.PkgPath(), Name: implementationSample.String(), Kind: implementationSample.Kind()}
	}

	source := &OpenGenericSource{
		Service:        serviceDef,
		Implementation: implDef,
		Closings:       make(map[reflect.Type]*ConstructorInfo, len(closings)),
	}
	for _, c := range closings {
		source.Closings[c.ServiceType] = c.Ctor
	}

	return &Descriptor{
		Lifetime:    lifetime,
		OpenGeneric: source,
	}
}
