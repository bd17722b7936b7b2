package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// APIPrefix is the mount point of every tenant and admin route
const APIPrefix = "/api/v1"

// Route is one method and path. Paths are relative to their Resource
// until Routes resolves them.
type Route struct {
	Method   string
	Path     string
	handlers []gin.HandlerFunc
}

// Resource is the route table of one REST resource plus its nested
// resources. gin matches static segments first only when they are added
// before the parameters of the same level, so keep that order.
type Resource struct {
	prefix   string
	use      []gin.HandlerFunc
	routes   []Route
	children []*Resource
}

func NewResource(prefix string) *Resource {
	return &Resource{prefix: prefix}
}

// Use adds middleware run for this resource and its children only
func (r *Resource) Use(mw ...gin.HandlerFunc) *Resource {
	r.use = append(r.use, mw...)
	return r
}

func (r *Resource) Handle(method, p string, handlers ...gin.HandlerFunc) *Resource {
	r.routes = append(r.routes, Route{Method: method, Path: p, handlers: handlers})
	return r
}

func (r *Resource) GET(p string, h ...gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodGet, p, h...)
}

func (r *Resource) POST(p string, h ...gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodPost, p, h...)
}

func (r *Resource) DELETE(p string, h ...gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodDelete, p, h...)
}

// Update registers h for both PATCH and PUT; both apply a partial update
func (r *Resource) Update(p string, h ...gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodPatch, p, h...).Handle(http.MethodPut, p, h...)
}

// Nest adds a child resource mounted below this one
func (r *Resource) Nest(prefix string) *Resource {
	child := NewResource(prefix)
	r.children = append(r.children, child)
	return child
}

func (r *Resource) mount(parent *gin.RouterGroup) {
	g := parent.Group(r.prefix, r.use...)
	for _, route := range r.routes {
		g.Handle(route.Method, route.Path, route.handlers...)
	}
	for _, child := range r.children {
		child.mount(g)
	}
}

// Routes resolves every route against base into the form gin reports
// from Context.FullPath
func (r *Resource) Routes(base string) []Route {
	prefix := joinPath(base, r.prefix)
	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, Route{Method: route.Method, Path: joinPath(prefix, route.Path)})
	}
	for _, child := range r.children {
		out = append(out, child.Routes(prefix)...)
	}
	return out
}

// Mount registers resources on engine below APIPrefix behind mw
func Mount(engine *gin.Engine, mw []gin.HandlerFunc, resources ...*Resource) {
	api := engine.Group(APIPrefix, mw...)
	for _, r := range resources {
		r.mount(api)
	}
}

func joinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	return path.Join(base, rel)
}
