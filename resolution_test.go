package di

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dozm/di/v2/errorx"
	"github.com/dozm/di/v2/reflectx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	greeter interface {
		Greet() string
	}
	englishGreeter struct{}
	frenchGreeter  struct{}

	cycleA struct{}
	cycleB struct{}

	unregistered struct{}
)

func (*englishGreeter) Greet() string { return "hello" }
func (*frenchGreeter) Greet() string  { return "bonjour" }

// releaseLog records the order in which tracked values are released.
type releaseLog struct {
	mu    sync.Mutex
	names []string
}

func (l *releaseLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *releaseLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

type tracked struct {
	name string
	log  *releaseLog
}

func (t *tracked) Dispose() {
	t.log.add(t.name)
}

func addGreeters(b ContainerBuilder) {
	AddTransient[greeter](b, func() *englishGreeter { return &englishGreeter{} })
	AddTransient[greeter](b, func() *frenchGreeter { return &frenchGreeter{} })
}

func TestResolve_LastRegistrationWins(t *testing.T) {
	b := Builder()
	addGreeters(b)
	c := b.Build()

	g := Get[greeter](c)
	require.IsType(t, &frenchGreeter{}, g)
}

func TestResolve_SliceKeepsRegistrationOrder(t *testing.T) {
	b := Builder()
	addGreeters(b)
	c := b.Build()

	greeters := Get[[]greeter](c)
	require.Len(t, greeters, 2)
	assert.IsType(t, &englishGreeter{}, greeters[0])
	assert.IsType(t, &frenchGreeter{}, greeters[1])
}

func TestResolve_SingletonIdentity(t *testing.T) {
	b := Builder()
	AddSingleton[greeter](b, func() *englishGreeter { return &englishGreeter{} })
	c := b.Build()

	root := Get[greeter](c)
	scope1 := Get[ScopeFactory](c).CreateScope()
	scope2 := Get[ScopeFactory](c).CreateScope()

	require.Same(t, root, Get[greeter](c))
	require.Same(t, root, Get[greeter](scope1.Container()))
	require.Same(t, root, Get[greeter](scope2.Container()))
}

func TestResolve_ScopedIdentity(t *testing.T) {
	b := Builder()
	AddScoped[greeter](b, func() *englishGreeter { return &englishGreeter{} })
	c := b.Build()

	scope1 := Get[ScopeFactory](c).CreateScope()
	scope2 := Get[ScopeFactory](c).CreateScope()

	first := Get[greeter](scope1.Container())
	require.Same(t, first, Get[greeter](scope1.Container()))
	require.NotSame(t, first, Get[greeter](scope2.Container()))
}

func TestResolve_ScopedFromRootIsCachedInRoot(t *testing.T) {
	b := Builder()
	AddScoped[greeter](b, func() *englishGreeter { return &englishGreeter{} })
	c := b.Build()

	require.Same(t, Get[greeter](c), Get[greeter](c))
}

func TestResolve_TransientFreshAndCaptured(t *testing.T) {
	log := &releaseLog{}
	b := Builder()
	AddTransient[*tracked](b, func() *tracked { return &tracked{name: "t", log: log} })
	c := b.Build()

	scope := Get[ScopeFactory](c).CreateScope()
	first := Get[*tracked](scope.Container())
	second := Get[*tracked](scope.Container())
	require.NotSame(t, first, second)

	engineScope := scope.Container().(*ContainerEngineScope)
	require.Equal(t, []any{first, second}, engineScope.Disposables())
	require.Empty(t, c.(*container).Root.Disposables())
}

func TestResolve_CircularDependencyNamesBothTypes(t *testing.T) {
	b := Builder()
	AddTransient[*cycleA](b, func(*cycleB) *cycleA { return &cycleA{} })
	AddTransient[*cycleB](b, func(*cycleA) *cycleB { return &cycleB{} })
	c := b.Build()

	_, err := TryGet[*cycleA](c)
	var circular *errorx.CircularDependencyError
	require.ErrorAs(t, err, &circular)
	require.Equal(t, reflectx.TypeOf[*cycleA](), circular.ServiceType)
	require.Contains(t, err.Error(), "cycleA")
	require.Contains(t, err.Error(), "cycleB")
}

func TestResolve_FailedCompilationIsRetried(t *testing.T) {
	b := Builder()
	AddTransient[*cycleA](b, func(*cycleB) *cycleA { return &cycleA{} })
	AddTransient[*cycleB](b, func(*cycleA) *cycleB { return &cycleB{} })
	c := b.Build()

	_, err1 := TryGet[*cycleA](c)
	_, err2 := TryGet[*cycleA](c)
	require.Error(t, err1)
	require.Error(t, err2)

	_, cached := c.(*container).realizedServices.Load(reflectx.TypeOf[*cycleA]())
	require.False(t, cached)
}

func TestResolve_DisposalOrderAndIdempotence(t *testing.T) {
	log := &releaseLog{}
	names := []string{"x", "y", "z"}
	next := 0

	b := Builder()
	AddTransient[*tracked](b, func() *tracked {
		name := names[next]
		next++
		return &tracked{name: name, log: log}
	})
	c := b.Build()

	scope := Get[ScopeFactory](c).CreateScope()
	for range names {
		_ = Get[*tracked](scope.Container())
	}

	require.NoError(t, scope.Dispose())
	require.Equal(t, []string{"z", "y", "x"}, log.snapshot())

	require.NoError(t, scope.Dispose())
	require.Equal(t, []string{"z", "y", "x"}, log.snapshot())
}

func TestResolve_UnknownType(t *testing.T) {
	c := Builder().Build()

	v, err := c.Get(reflectx.TypeOf[*unregistered]())
	require.NoError(t, err)
	require.Nil(t, v)

	all, err := c.Get(reflectx.TypeOf[[]*unregistered]())
	require.NoError(t, err)
	require.Empty(t, all)
	require.IsType(t, []*unregistered{}, all)

	_, err = TryGet[*unregistered](c)
	var notFound *errorx.ServiceNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestResolve_BuiltInServices(t *testing.T) {
	c := Builder().Build()
	scope := Get[ScopeFactory](c).CreateScope()

	require.Same(t, c, Get[ScopeFactory](scope.Container()))
	require.Same(t, scope.Container(), Get[Container](scope.Container()))
	require.Same(t, c.(*container).Root, Get[Container](c))
	require.True(t, Get[IsService](c).IsService(ContainerType))
}

func TestResolve_ConstructorErrorIsReturnedUnwrapped(t *testing.T) {
	failure := errors.New("boom")

	b := Builder()
	AddTransient[greeter](b, func() (*englishGreeter, error) { return nil, failure })
	c := b.Build()

	_, err := TryGet[greeter](c)
	require.Same(t, failure, err)
}

func TestResolve_ConstructorPanicIsReturned(t *testing.T) {
	failure := errors.New("panicked")

	b := Builder()
	AddTransient[greeter](b, func() *englishGreeter { panic(failure) })
	AddTransient[string](b, func() string { panic("plain") })
	c := b.Build()

	_, err := TryGet[greeter](c)
	require.Same(t, failure, err)

	_, err = TryGet[string](c)
	require.EqualError(t, err, "plain")
}

func TestResolve_DisposedScope(t *testing.T) {
	b := Builder()
	AddTransient[greeter](b, func() *englishGreeter { return &englishGreeter{} })
	c := b.Build()

	scope := Get[ScopeFactory](c).CreateScope()
	require.NoError(t, scope.Dispose())

	_, err := TryGet[greeter](scope.Container())
	var disposed *errorx.ObjectDisposedError
	require.ErrorAs(t, err, &disposed)

	// the container itself is still usable
	require.NotNil(t, Get[greeter](c))
}

func TestResolve_DisposedContainer(t *testing.T) {
	log := &releaseLog{}
	b := Builder()
	AddSingleton[*tracked](b, func() *tracked { return &tracked{name: "singleton", log: log} })
	c := b.Build()

	_ = Get[*tracked](c)
	require.NoError(t, Dispose(c))
	require.Equal(t, []string{"singleton"}, log.snapshot())

	_, err := TryGet[*tracked](c)
	var disposed *errorx.ObjectDisposedError
	require.ErrorAs(t, err, &disposed)

	require.Panics(t, func() { c.(ScopeFactory).CreateScope() })
}

type failingCloser struct {
	err error
}

func (f *failingCloser) Close() error {
	return f.err
}

func TestResolve_DisposalErrorsAreCombined(t *testing.T) {
	errs := []error{errors.New("first"), errors.New("second")}
	next := 0

	b := Builder()
	AddTransient[*failingCloser](b, func() *failingCloser {
		f := &failingCloser{err: errs[next]}
		next++
		return f
	})
	c := b.Build()

	scope := Get[ScopeFactory](c).CreateScope()
	_ = Get[*failingCloser](scope.Container())
	_ = Get[*failingCloser](scope.Container())

	err := scope.Dispose()
	require.Error(t, err)
	require.ErrorIs(t, err, errs[0])
	require.ErrorIs(t, err, errs[1])
	// released in reverse order
	require.True(t, strings.Index(err.Error(), "second") < strings.Index(err.Error(), "first"))
}

func TestResolve_CaptureIntoDisposedScope(t *testing.T) {
	log := &releaseLog{}
	b := Builder()
	AddTransient[*tracked](b, func(c Container) *tracked {
		_ = Dispose(c)
		return &tracked{name: "late", log: log}
	})
	c := b.Build()

	scope := Get[ScopeFactory](c).CreateScope()
	_, err := TryGet[*tracked](scope.Container())

	var disposed *errorx.ObjectDisposedError
	require.ErrorAs(t, err, &disposed)
	require.Equal(t, []string{"late"}, log.snapshot())
}

func TestResolve_ConcurrentScopedFactories(t *testing.T) {
	b := Builder()
	AddScoped[*tracked](b, func() *tracked { return &tracked{log: &releaseLog{}} })
	c := b.Build()

	scope := Get[ScopeFactory](c).CreateScope()
	results := make([]*tracked, 50)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Get[*tracked](scope.Container())
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Same(t, results[0], r)
	}
	require.Len(t, scope.Container().(*ContainerEngineScope).Disposables(), 1)
}
