// Package httpscope creates one container scope per HTTP request.
//
// The scope is created before the handler runs and disposed when it returns:
//
//	r := chi.NewRouter()
//	r.Use(httpscope.Middleware(di.Get[di.ScopeFactory](c)))
//	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
//		svc := di.Get[*Service](httpscope.FromRequest(r))
//		...
//	})
package httpscope

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dozm/di/v2"
)

type contextKey struct{}

// ginKey is the gin.Context key holding the request Container.
const ginKey = "github.com/dozm/di/v2/httpscope"

type settings struct {
	onDisposeError func(*http.Request, error)
}

type Option func(*settings)

// OnDisposeError is called with the error returned by disposing a request scope.
func OnDisposeError(f func(*http.Request, error)) Option {
	return func(s *settings) {
		s.onDisposeError = f
	}
}

func newSettings(opts []Option) *settings {
	s := &settings{}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *settings) dispose(r *http.Request, scope di.Scope) {
	if err := scope.Dispose(); err != nil && s.onDisposeError != nil {
		s.onDisposeError(r, err)
	}
}

// Middleware is a net/http middleware, usable with chi, that runs every request in a new scope.
func Middleware(sf di.ScopeFactory, opts ...Option) func(http.Handler) http.Handler {
	s := newSettings(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := sf.CreateScope()
			defer s.dispose(r, scope)

			next.ServeHTTP(w, r.WithContext(WithContainer(r.Context(), scope.Container())))
		})
	}
}

// Gin is the gin equivalent of Middleware.
func Gin(sf di.ScopeFactory, opts ...Option) gin.HandlerFunc {
	s := newSettings(opts)

	return func(c *gin.Context) {
		scope := sf.CreateScope()
		defer s.dispose(c.Request, scope)

		container := scope.Container()
		c.Set(ginKey, container)
		c.Request = c.Request.WithContext(WithContainer(c.Request.Context(), container))
		c.Next()
	}
}

// WithContainer returns a copy of ctx carrying c.
func WithContainer(ctx context.Context, c di.Container) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func FromContext(ctx context.Context) (di.Container, bool) {
	c, ok := ctx.Value(contextKey{}).(di.Container)
	return c, ok
}

// FromRequest returns the Container of the request scope. It panics outside Middleware or Gin.
func FromRequest(r *http.Request) di.Container {
	c, ok := FromContext(r.Context())
	if !ok {
		panic("httpscope: no request scope, is the middleware installed?")
	}
	return c
}

// FromGin returns the Container of the request scope. It panics outside Gin.
func FromGin(c *gin.Context) di.Container {
	v, ok := c.Get(ginKey)
	if !ok {
		panic("httpscope: no request scope, is the middleware installed?")
	}
	return v.(di.Container)
}
