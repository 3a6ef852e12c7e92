package di

import (
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/dozm/di/v2/errorx"
)

// ContainerEngineScope is the unit of lifetime and disposal.
// Locker serializes the builds of the services cached in the scope.
// ResolvedServices and the captured disposables are guarded by a separate mutex
// that is never held while user code runs.
type ContainerEngineScope struct {
	RootContainer    *container
	IsRootScope      bool
	ResolvedServices map[ServiceCacheKey]any
	Locker           *sync.Mutex
	mu               sync.RWMutex
	disposed         atomic.Bool
	disposables      []any
	// inherited are the locks held by the build that created the scope through a
	// chainView, in effect until that build returns.
	inherited *heldLock
}

func (s *ContainerEngineScope) Get(serviceType reflect.Type) (any, error) {
	return s.get(serviceType, s.inherited)
}

func (s *ContainerEngineScope) get(serviceType reflect.Type, held *heldLock) (any, error) {
	if s.disposed.Load() {
		return nil, s.disposedError()
	}

	return s.RootContainer.getWithScope(serviceType, s, held)
}

func (s *ContainerEngineScope) IsService(serviceType reflect.Type) bool {
	return s.RootContainer.IsService(serviceType)
}

func (s *ContainerEngineScope) Container() Container {
	return s
}

func (s *ContainerEngineScope) CreateScope() Scope {
	return s.RootContainer.createScope(s.inherited)
}

func (s *ContainerEngineScope) IsDisposed() bool {
	return s.disposed.Load()
}

// Dispose releases the captured disposables in reverse capture order.
// Calls after the first one do nothing. Every disposable is released once even when
// some of them fail; the failures are combined into the returned error.
func (s *ContainerEngineScope) Dispose() error {
	disposables := s.beginDispose()

	var err error
	for i := len(disposables) - 1; i >= 0; i-- {
		err = multierr.Append(err, release(disposables[i]))
	}

	s.mu.Lock()
	clear(s.ResolvedServices)
	s.mu.Unlock()

	return err
}

// Disposables returns a snapshot of the captured disposables in capture order.
func (s *ContainerEngineScope) Disposables() []any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := make([]any, len(s.disposables))
	copy(d, s.disposables)
	return d
}

func (s *ContainerEngineScope) beginDispose() []any {
	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return nil
	}
	s.disposed.Store(true)
	disposables := s.disposables
	s.disposables = nil
	s.mu.Unlock()

	if s.IsRootScope && !s.RootContainer.IsDisposed() {
		s.RootContainer.markDisposed()
	}

	return disposables
}

// captureDisposable records service for disposal.
func (s *ContainerEngineScope) captureDisposable(service any) error {
	if !s.isCapturable(service) {
		return nil
	}

	s.mu.Lock()
	disposed := s.disposed.Load()
	if !disposed {
		s.disposables = append(s.disposables, service)
	}
	s.mu.Unlock()

	if disposed {
		return s.rejectDisposed(service)
	}
	return nil
}

func (s *ContainerEngineScope) cached(key ServiceCacheKey) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resolved, ok := s.ResolvedServices[key]
	return resolved, ok
}

// storeResolved caches service under key and captures it for disposal. When the key
// is already cached, which happens only for parallel builds through a chainView, the
// cached instance wins and service is captured so it is still released.
func (s *ContainerEngineScope) storeResolved(key ServiceCacheKey, service any) (any, error) {
	capturable := s.isCapturable(service)

	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return nil, s.rejectDisposed(service)
	}
	if capturable {
		s.disposables = append(s.disposables, service)
	}
	if existing, ok := s.ResolvedServices[key]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.ResolvedServices[key] = service
	s.mu.Unlock()

	return service, nil
}

func (s *ContainerEngineScope) isCapturable(service any) bool {
	if service == nil || !isDisposable(service) {
		return false
	}
	sc, ok := service.(*ContainerEngineScope)
	return !ok || sc != s
}

// rejectDisposed releases service built for a scope that has been disposed meanwhile.
func (s *ContainerEngineScope) rejectDisposed(service any) error {
	err := fmt.Errorf("store service '%v': %w", reflect.TypeOf(service), s.disposedError())
	if s.isCapturable(service) {
		err = multierr.Append(err, release(service))
	}
	return err
}

func (s *ContainerEngineScope) disposedError() error {
	return &errorx.ObjectDisposedError{Message: ContainerType.String()}
}

func isDisposable(service any) bool {
	switch service.(type) {
	case Disposable, io.Closer:
		return true
	}
	return false
}

// release disposes service, turning a panic into an error.
func release(service any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError(p)
		}
	}()

	switch d := service.(type) {
	case Disposable:
		d.Dispose()
	case io.Closer:
		err = d.Close()
	}
	return
}

func newEngineScope(c *container, isRootScope bool, inherited *heldLock) *ContainerEngineScope {
	return &ContainerEngineScope{
		RootContainer:    c,
		IsRootScope:      isRootScope,
		ResolvedServices: make(map[ServiceCacheKey]any),
		Locker:           new(sync.Mutex),
		inherited:        inherited,
	}
}

// chainView is the Container of a call chain inside a cached build. It resolves
// with the locks the chain holds, and the scopes it creates do the same, until the
// build returns. After that it behaves like the scope itself.
type chainView struct {
	scope *ContainerEngineScope
	held  *heldLock
}

func (v *chainView) Get(serviceType reflect.Type) (any, error) {
	return v.scope.get(serviceType, v.held)
}

func (v *chainView) IsService(serviceType reflect.Type) bool {
	return v.scope.IsService(serviceType)
}

func (v *chainView) CreateScope() Scope {
	return v.scope.RootContainer.createScope(v.held)
}

// Scope returns the scope the view resolves in.
func (v *chainView) Scope() *ContainerEngineScope {
	return v.scope
}
