package di

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/dozm/di/v2/errorx"
	"github.com/dozm/di/v2/reflectx"
	"github.com/dozm/di/v2/syncx"
	"github.com/dozm/di/v2/util"
)

const DefaultSlot int = 0

// CallSiteFactory compiles service types into call sites.
// Successful compilations are cached for the life of the container, failures are not.
type CallSiteFactory struct {
	descriptors      []*Descriptor
	callSiteCache    *syncx.Map[ServiceCacheKey, CallSite]
	descriptorLookup map[reflect.Type]descriptorCacheItem
	genericLookup    map[reflectx.GenericDef]descriptorCacheItem
	maxStackDepth    int
}

func (f *CallSiteFactory) Descriptors() []*Descriptor {
	return f.descriptors
}

func (f *CallSiteFactory) populate() error {
	for _, descriptor := range f.descriptors {
		if descriptor.IsOpenGeneric() {
			if err := validateOpenGeneric(descriptor); err != nil {
				return err
			}
			def := descriptor.OpenGeneric.Service
			f.genericLookup[def] = f.genericLookup[def].Add(descriptor)
			continue
		}

		if descriptor.ServiceType == nil {
			return errorx.NewArgumentNilError("ServiceType")
		}

		if n := descriptor.sourceCount(); n != 1 {
			return &errorx.InvalidDescriptor{
				ServiceType: descriptor.ServiceType,
				Reason:      fmt.Sprintf("%d sources set, exactly one of instance, factory or implementation type is required", n),
			}
		}

		if descriptor.Instance == nil && descriptor.Factory == nil && descriptor.ImplementationType != nil {
			if len(descriptor.Ctors) == 0 && descriptor.ImplementationType.Kind() == reflect.Interface {
				return &errorx.TypeCannotBeActivatedError{
					ServiceType:        descriptor.ServiceType,
					ImplementationType: descriptor.ImplementationType.String(),
				}
			}
		}

		serviceType := descriptor.ServiceType
		f.descriptorLookup[serviceType] = f.descriptorLookup[serviceType].Add(descriptor)
	}
	return nil
}

func validateOpenGeneric(d *Descriptor) error {
	src := d.OpenGeneric
	mismatch := func(reason string) error {
		return &errorx.OpenGenericMismatchError{
			Service:        src.Service.String(),
			Implementation: src.Implementation.String(),
			Reason:         reason,
		}
	}

	if src.Service.Arity == 0 {
		return mismatch("the service is not a generic type")
	}
	if src.Implementation.Arity == 0 {
		return mismatch("the implementation is not a generic type")
	}
	if src.Service.Arity != src.Implementation.Arity {
		return mismatch(fmt.Sprintf("arity %d does not match arity %d", src.Service.Arity, src.Implementation.Arity))
	}
	if src.Implementation.Kind == reflect.Interface {
		return mismatch("the implementation is an interface and cannot be constructed")
	}

	for serviceType, ctor := range src.Closings {
		serviceDef, serviceArgs, ok := reflectx.GenericDefOf(serviceType)
		if !ok || serviceDef != src.Service {
			return mismatch(fmt.Sprintf("'%v' is not an instantiation of the service", serviceType))
		}
		if err := checkConstructor(ctor, serviceType); err != nil {
			return mismatch(err.Error())
		}
		implDef, implArgs, ok := reflectx.GenericDefOf(ctor.ImplementationType())
		if !ok || implDef != src.Implementation || implArgs != serviceArgs {
			return mismatch(fmt.Sprintf("the constructor for '%v' produces '%v'", serviceType, ctor.ImplementationType()))
		}
	}
	return nil
}

func (f *CallSiteFactory) GetCallSite(serviceType reflect.Type, chain *callSiteChain) (CallSite, error) {
	if site, ok := f.callSiteCache.Load(ServiceCacheKey{ServiceType: serviceType, Slot: DefaultSlot}); ok {
		return site, nil
	}

	return f.createCallSite(serviceType, chain)
}

func (f *CallSiteFactory) GetCallSiteByDescriptor(descriptor *Descriptor, chain *callSiteChain) (CallSite, error) {
	if descriptorCache, ok := f.descriptorLookup[descriptor.ServiceType]; ok {
		return f.tryCreateExact(
			descriptor,
			descriptor.ServiceType,
			chain,
			descriptorCache.GetSlot(descriptor))
	}

	return nil, errors.New("descriptorLookup didn't contain requested descriptor")
}

func (f *CallSiteFactory) createCallSite(serviceType reflect.Type, chain *callSiteChain) (callSite CallSite, err error) {
	if !chain.guard.TryEnterOnCurrentStack() {
		return syncx.RunOnEmptyStack(chain.guard, func() (CallSite, error) {
			return f.createCallSite(serviceType, chain)
		})
	}
	defer chain.guard.Leave()

	if err = chain.CheckCircularDependency(serviceType); err != nil {
		return nil, err
	}

	if callSite, err = f.tryCreateExactType(serviceType, chain); callSite == nil && err == nil {
		if callSite, err = f.tryCreateOpenGenericType(serviceType, chain); callSite == nil && err == nil {
			callSite, err = f.tryCreateSlice(serviceType, chain)
		}
	}

	if err != nil || callSite == nil {
		return nil, err
	}

	callSite, _ = f.callSiteCache.LoadOrStore(ServiceCacheKey{serviceType, DefaultSlot}, callSite)
	return callSite, nil
}

func (f *CallSiteFactory) tryCreateExactType(serviceType reflect.Type, chain *callSiteChain) (CallSite, error) {
	if descriptor, ok := f.descriptorLookup[serviceType]; ok {
		return f.tryCreateExact(descriptor.Last(), serviceType, chain, DefaultSlot)
	}
	return nil, nil
}

func (f *CallSiteFactory) tryCreateOpenGenericType(serviceType reflect.Type, chain *callSiteChain) (CallSite, error) {
	def, _, ok := reflectx.GenericDefOf(serviceType)
	if !ok {
		return nil, nil
	}

	if descriptor, ok := f.genericLookup[def]; ok {
		return f.tryCreateOpenGeneric(descriptor.Last(), serviceType, chain, DefaultSlot)
	}
	return nil, nil
}

func (f *CallSiteFactory) tryCreateExact(descriptor *Descriptor, serviceType reflect.Type, chain *callSiteChain, slot int) (CallSite, error) {
	if descriptor.IsOpenGeneric() || serviceType != descriptor.ServiceType {
		return nil, nil
	}

	callSiteKey := ServiceCacheKey{serviceType, slot}
	if callSite, ok := f.callSiteCache.Load(callSiteKey); ok {
		return callSite, nil
	}

	cache := newResultCache(descriptor.Lifetime, serviceType, slot)

	var callSite CallSite
	var err error
	switch {
	case descriptor.Instance != nil:
		callSite = newConstantCallSite(serviceType, descriptor.Instance)
	case descriptor.Factory != nil:
		callSite = newFactoryCallSite(cache, serviceType, descriptor.Factory)
	case descriptor.ImplementationType != nil:
		callSite, err = f.createConstructorCallSite(cache, serviceType, descriptor.ImplementationType, descriptor.Ctors, chain)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &errorx.InvalidDescriptor{ServiceType: serviceType}
	}

	callSite, _ = f.callSiteCache.LoadOrStore(callSiteKey, callSite)
	return callSite, nil
}

func (f *CallSiteFactory) tryCreateOpenGeneric(descriptor *Descriptor, serviceType reflect.Type, chain *callSiteChain, slot int) (CallSite, error) {
	if !descriptor.IsOpenGeneric() {
		return nil, nil
	}

	def, _, ok := reflectx.GenericDefOf(serviceType)
	if !ok || def != descriptor.OpenGeneric.Service {
		return nil, nil
	}

	ctor := descriptor.OpenGeneric.Close(serviceType)
	if ctor == nil {
		return nil, nil
	}

	callSiteKey := ServiceCacheKey{serviceType, slot}
	if callSite, ok := f.callSiteCache.Load(callSiteKey); ok {
		return callSite, nil
	}

	cache := newResultCache(descriptor.Lifetime, serviceType, slot)
	callSite, err := f.createConstructorCallSite(cache, serviceType, ctor.ImplementationType(), []*ConstructorInfo{ctor}, chain)
	if err != nil {
		return nil, err
	}

	stored, _ := f.callSiteCache.LoadOrStore(callSiteKey, CallSite(callSite))
	return stored, nil
}

func (f *CallSiteFactory) tryCreateSlice(serviceType reflect.Type, chain *callSiteChain) (CallSite, error) {
	if serviceType.Kind() != reflect.Slice {
		return nil, nil
	}

	chain.Add(serviceType, nil)
	defer chain.Remove(serviceType)

	elementType := serviceType.Elem()
	callSites := make([]CallSite, 0)

	if descriptorCache, ok := f.descriptorLookup[elementType]; ok && !reflectx.IsGeneric(elementType) {
		num := descriptorCache.Num()
		for i := 0; i < num; i++ {
			// the last registration gets slot 0
			cs, err := f.tryCreateExact(descriptorCache.Get(i), elementType, chain, num-i-1)
			if err != nil {
				return nil, err
			}
			callSites = append(callSites, cs)
		}
	} else {
		slot := 0
		for i := len(f.descriptors) - 1; i >= 0; i-- {
			descriptor := f.descriptors[i]
			cs, err := f.tryCreateExact(descriptor, elementType, chain, slot)
			if err != nil {
				return nil, err
			}
			if cs == nil {
				if cs, err = f.tryCreateOpenGeneric(descriptor, elementType, chain, slot); err != nil {
					return nil, err
				}
			}
			if cs != nil {
				slot++
				callSites = append(callSites, cs)
			}
		}

		util.ReverseSlice(callSites)
	}

	return newSliceCallSite(elementType, util.ClipSlice(callSites)), nil
}

func (f *CallSiteFactory) createConstructorCallSite(
	cache ResultCache,
	serviceType reflect.Type,
	implementationType reflect.Type,
	ctors []*ConstructorInfo,
	chain *callSiteChain,
) (*ConstructorCallSite, error) {
	chain.Add(serviceType, implementationType)
	defer chain.Remove(serviceType)

	switch len(ctors) {
	case 0:
		return nil, &errorx.NoConstructorMatchError{ImplementationType: implementationType}
	case 1:
		ctor := ctors[0]
		if len(ctor.In) == 0 {
			return newConstructorCallSite(cache, serviceType, ctor, nil), nil
		}

		parameterCallSites, err := f.createArgumentCallSites(implementationType, chain, ctor, true)
		if err != nil {
			return nil, err
		}
		return newConstructorCallSite(cache, serviceType, ctor, parameterCallSites), nil
	}

	sorted := make([]*ConstructorInfo, len(ctors))
	copy(sorted, ctors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].In) > len(sorted[j].In)
	})

	var bestCtor *ConstructorInfo
	var bestParameterTypes map[reflect.Type]struct{}
	var parameterCallSites []CallSite

	for _, ctor := range sorted {
		current, err := f.createArgumentCallSites(implementationType, chain, ctor, false)
		if err != nil {
			return nil, err
		}
		if current == nil {
			continue
		}

		if bestCtor == nil {
			bestCtor = ctor
			parameterCallSites = current
			continue
		}

		if bestParameterTypes == nil {
			bestParameterTypes = util.SetOf(bestCtor.In)
		}

		if !util.IsSubset(bestParameterTypes, ctor.In) {
			return nil, &errorx.AmbiguousConstructorError{
				ImplementationType: implementationType,
				Best:               bestCtor.String(),
				Other:              ctor.String(),
			}
		}
	}

	if bestCtor == nil {
		return nil, &errorx.UnableToActivateError{ImplementationType: implementationType}
	}

	return newConstructorCallSite(cache, serviceType, bestCtor, parameterCallSites), nil
}

// createArgumentCallSites returns nil call sites without error when a parameter cannot be
// resolved and throwIfCallSiteNotFound is false.
func (f *CallSiteFactory) createArgumentCallSites(
	implementationType reflect.Type,
	chain *callSiteChain,
	ctor *ConstructorInfo,
	throwIfCallSiteNotFound bool,
) ([]CallSite, error) {
	callSites := make([]CallSite, len(ctor.In))
	for i, t := range ctor.In {
		cs, err := f.GetCallSite(t, chain)
		if err != nil {
			return nil, err
		}

		if cs == nil {
			if v, ok := ctor.DefaultValue(i); ok {
				cs = newConstantCallSite(t, v)
			}
		}

		if cs == nil {
			if throwIfCallSiteNotFound {
				return nil, &errorx.CannotResolveServiceError{
					ParameterType:      t,
					ParameterIndex:     i,
					ImplementationType: implementationType,
				}
			}
			return nil, nil
		}

		callSites[i] = cs
	}
	return callSites, nil
}

func (f *CallSiteFactory) Add(serviceType reflect.Type, callSite CallSite) {
	f.callSiteCache.Store(ServiceCacheKey{ServiceType: serviceType, Slot: DefaultSlot}, callSite)
}

// Determines if the specified service type is available from the container.
func (f *CallSiteFactory) IsService(serviceType reflect.Type) bool {
	if serviceType == nil {
		return false
	}

	if _, ok := f.descriptorLookup[serviceType]; ok {
		return true
	}

	if def, _, ok := reflectx.GenericDefOf(serviceType); ok {
		if descriptor, ok := f.genericLookup[def]; ok && descriptor.Last().OpenGeneric.Close(serviceType) != nil {
			return true
		}
	}

	if serviceType.Kind() == reflect.Slice {
		return true
	}

	return serviceType == ContainerType ||
		serviceType == ScopeFactoryType ||
		serviceType == IsServiceType
}

func newCallSiteFactory(descriptors []*Descriptor, maxStackDepth int) (*CallSiteFactory, error) {
	d := make([]*Descriptor, len(descriptors))
	copy(d, descriptors)

	f := &CallSiteFactory{
		descriptors:      d,
		callSiteCache:    syncx.NewMap[ServiceCacheKey, CallSite](),
		descriptorLookup: make(map[reflect.Type]descriptorCacheItem),
		genericLookup:    make(map[reflectx.GenericDef]descriptorCacheItem),
		maxStackDepth:    maxStackDepth,
	}

	if err := f.populate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *CallSiteFactory) newChain() *callSiteChain {
	return newCallSiteChain(f.maxStackDepth)
}

// descriptorCacheItem is the run of registrations sharing one service type.
// The first registration is kept apart so that a single registration needs no slice.
type descriptorCacheItem struct {
	item  *Descriptor
	items []*Descriptor
}

func (dci descriptorCacheItem) Last() *Descriptor {
	if l := len(dci.items); l > 0 {
		return dci.items[l-1]
	}

	return dci.item
}

func (dci descriptorCacheItem) Num() int {
	if dci.item == nil {
		return 0
	}

	return 1 + len(dci.items)
}

func (dci descriptorCacheItem) Get(index int) *Descriptor {
	if index >= dci.Num() {
		panic("index out of range")
	}

	if index == 0 {
		return dci.item
	}

	return dci.items[index-1]
}

// GetSlot returns the slot of descriptor, the last registration has slot 0.
func (dci descriptorCacheItem) GetSlot(descriptor *Descriptor) int {
	num := dci.Num()
	for i := 0; i < num; i++ {
		if dci.Get(i) == descriptor {
			return num - i - 1
		}
	}

	panic(errors.New("descriptor not exist"))
}

func (dci descriptorCacheItem) Add(descriptor *Descriptor) descriptorCacheItem {
	var newCacheItem descriptorCacheItem
	if dci.item == nil {
		newCacheItem.item = descriptor
	} else {
		newCacheItem.item = dci.item
		newCacheItem.items = append(dci.items, descriptor)
	}
	return newCacheItem
}
