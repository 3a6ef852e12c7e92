package di

import (
	"fmt"
	"reflect"
)

// CacheLocation tells where the result of a call site is kept.
type CacheLocation byte

const (
	CacheLocation_None CacheLocation = iota
	// not cached, captured for disposal by the requesting scope
	CacheLocation_Dispose
	CacheLocation_Scope
	CacheLocation_Root
)

func (l CacheLocation) String() string {
	switch l {
	case CacheLocation_None:
		return "None"
	case CacheLocation_Dispose:
		return "Dispose"
	case CacheLocation_Scope:
		return "Scope"
	case CacheLocation_Root:
		return "Root"
	default:
		return fmt.Sprintf("CacheLocation(%d)", byte(l))
	}
}

var NoneResultCache = ResultCache{Location: CacheLocation_None}

type ServiceCacheKey struct {
	// Type of service being cached
	ServiceType reflect.Type

	// Reverse index of the service when resolved in slice where default instance gets slot 0.
	Slot int
}

func (k ServiceCacheKey) String() string {
	return fmt.Sprintf("%v#%d", k.ServiceType, k.Slot)
}

// callsite result cache
type ResultCache struct {
	Location CacheLocation
	Key      ServiceCacheKey
}

func newResultCache(lifetime Lifetime, typ reflect.Type, slot int) ResultCache {
	var loc CacheLocation
	switch lifetime {
	case Lifetime_Singleton:
		loc = CacheLocation_Root
	case Lifetime_Scoped:
		loc = CacheLocation_Scope
	case Lifetime_Transient:
		loc = CacheLocation_Dispose
	default:
		loc = CacheLocation_None
	}

	return ResultCache{
		Location: loc,
		Key:      ServiceCacheKey{typ, slot},
	}
}
