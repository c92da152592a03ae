// Package shadowecho provides Echo framework integration for shadow
// components.
//
// Serve a registered component as server-rendered declarative shadow DOM:
//
//	e := echo.New()
//	doc := shadowecho.NewDocument(shadow.WithRegistry(reg))
//	shadowecho.Mount(e, "/todos", doc, "todo-list")
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	shadowecho.MountGroup(g, "/todos", doc, "todo-list")
package shadowecho

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/shadow"
)

// AttrsFunc extracts host attributes for a request.
type AttrsFunc func(c echo.Context) []shadow.Attribute

// Option configures a handler.
type Option func(*options)

type options struct {
	attrs   AttrsFunc
	timeout time.Duration
}

// WithAttrs sets how host attributes are read from the request. Defaults
// to QueryAttrs.
func WithAttrs(fn AttrsFunc) Option {
	return func(o *options) {
		o.attrs = fn
	}
}

// WithTimeout bounds how long a request waits for the first render,
// including CSS imports. Defaults to 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// NewDocument creates a document suited to server rendering: frames are
// immediate since nothing is painted.
func NewDocument(opts ...shadow.DocOption) *shadow.Document {
	return shadow.NewDocument(append([]shadow.DocOption{shadow.WithClock(shadow.ImmediateClock{})}, opts...)...)
}

// QueryAttrs maps every query parameter to a host attribute, so
// ?state={"todos":[]}&title=Inbox sets the state and title attributes.
func QueryAttrs(c echo.Context) []shadow.Attribute {
	q := c.QueryParams()
	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]shadow.Attribute, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, shadow.Attribute{Name: name, Value: q.Get(name)})
	}
	return attrs
}

// Handler mounts a fresh instance of tag per request, writes its snapshot
// and unmounts it.
func Handler(doc *shadow.Document, tag string, opts ...Option) echo.HandlerFunc {
	o := &options{attrs: QueryAttrs, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(o)
	}

	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), o.timeout)
		defer cancel()

		comp, err := doc.Create(ctx, tag, o.attrs(c)...)
		if comp != nil {
			defer doc.Unmount(comp)
		}
		if err != nil {
			if shadow.IsRegistrationError(err) {
				return echo.NewHTTPError(http.StatusNotFound, err.Error())
			}
			return err
		}
		return Render(c, shadow.Snapshot(comp))
	}
}

// Mount registers a GET route on an Echo instance serving tag.
func Mount(e *echo.Echo, path string, doc *shadow.Document, tag string, opts ...Option) *echo.Route {
	return e.GET(path, Handler(doc, tag, opts...))
}

// MountGroup registers a GET route on an Echo group serving tag. The
// route shares the group's middleware (auth, logging, etc.).
func MountGroup(g *echo.Group, path string, doc *shadow.Document, tag string, opts ...Option) *echo.Route {
	return g.GET(path, Handler(doc, tag, opts...))
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return shadowecho.Render(c, shadow.Snapshot(app))
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
