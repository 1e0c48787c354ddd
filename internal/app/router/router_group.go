package router

import (
	"context"
	"fmt"
	"reflect"

	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RouterMethod HTTP方法
type RouterMethod string

const (
	GET    RouterMethod = "GET"
	POST   RouterMethod = "POST"
	PUT    RouterMethod = "PUT"
	DELETE RouterMethod = "DELETE"
)

func (r RouterMethod) Value() string {
	return string(r)
}

// Router 已注册的路由
type Router struct {
	path        string
	method      RouterMethod
	handlerFunc any
}

func NewRouter(method string, path string, handlerFunc any) *Router {
	return &Router{
		path:        path,
		method:      RouterMethod(method),
		handlerFunc: handlerFunc,
	}
}

func (r *Router) GetPath() string {
	return r.path
}

func (r *Router) GetMethod() RouterMethod {
	return r.method
}

func (r *Router) GetHandlerFunc() any {
	return r.handlerFunc
}

type RouterGroup struct {
	group       *route.RouterGroup
	routers     []*Router
	middlewares []any
}

func NewRouterGroup(group *route.RouterGroup) *RouterGroup {
	return &RouterGroup{
		group:       group,
		routers:     make([]*Router, 0),
		middlewares: make([]any, 0),
	}
}

// Group 创建子路由组，继承父组的中间件
func (rg *RouterGroup) Group(path string) *RouterGroup {
	return &RouterGroup{
		group:       rg.group.Group(path),
		middlewares: append([]any{}, rg.middlewares...),
	}
}

// Use 添加中间件，只作用于之后注册的路由
func (rg *RouterGroup) Use(middleware ...any) {
	rg.middlewares = append(rg.middlewares, middleware...)
}

// BasePath 组的路径前缀
func (rg *RouterGroup) BasePath() string {
	return rg.group.BasePath()
}

// Handle 是一个通用的方法，用于处理所有 HTTP 方法
func (rg *RouterGroup) Handle(method, path string, handler any) {
	rg.routers = append(rg.routers, NewRouter(method, path, handler))
	handlers := append(append([]any{}, rg.middlewares...), handler)
	logger.Debug(context.Background(), fmt.Sprintf("register route: %s %s%s", method, rg.group.BasePath(), path))
	rg.group.Handle(method, path, adapt(handlers...))
}

func (rg *RouterGroup) GetRouter() []*Router {
	return rg.routers
}

func (rg *RouterGroup) FindRouter(method, path string) (*Router, bool) {
	router := lo.Filter(rg.routers, func(r *Router, index int) bool {
		return r.GetMethod().Value() == method && r.GetPath() == path
	})
	if len(router) != 1 {
		return nil, false
	}
	return router[0], true
}

func (rg *RouterGroup) GET(path string, handler any) {
	rg.Handle("GET", path, handler)
}

func (rg *RouterGroup) POST(path string, handler any) {
	rg.Handle("POST", path, handler)
}

func (rg *RouterGroup) PUT(path string, handler any) {
	rg.Handle("PUT", path, handler)
}

func (rg *RouterGroup) DELETE(path string, handler any) {
	rg.Handle("DELETE", path, handler)
}

var responseType = reflect.TypeOf((*mycontext.Response)(nil))

// adapt 把中间件与处理函数串成一个 hertz HandlerFunc。
// 支持 app.HandlerFunc 中间件、func(*Context) *Response 以及 func(*Context, *Param) *Response；
// 后者在调用前按 query/form/path 标签绑定并校验参数。
func adapt(handlers ...any) app.HandlerFunc {
	for _, handler := range handlers {
		mustBeHandler(handler)
	}

	return func(ctx context.Context, c *app.RequestContext) {
		myCtx := mycontext.NewContext(ctx, c)

		for _, handler := range handlers {
			if middlewareFunc, ok := handler.(app.HandlerFunc); ok {
				middlewareFunc(ctx, c)
				if !c.IsAborted() {
					continue
				}
				return
			}

			handlerType := reflect.TypeOf(handler)
			handlerValue := reflect.ValueOf(handler)
			args := []reflect.Value{reflect.ValueOf(myCtx)}

			if handlerType.NumIn() == 2 {
				param := reflect.New(handlerType.In(1).Elem()).Interface()
				if err := c.BindAndValidate(param); err != nil {
					logger.Debug(ctx, "Bind request params failed", zap.String("path", myCtx.Path()), zap.Error(err))
					if myCtx.WantsJSON() {
						mycontext.ParamError(err).Write(myCtx)
					} else {
						c.String(consts.StatusBadRequest, err.Error())
					}
					return
				}
				args = append(args, reflect.ValueOf(param))
			}

			if !handleResults(myCtx, handlerValue.Call(args)) {
				return
			}
		}
	}
}

// mustBeHandler 注册时检查签名，签名错误属于编程错误
func mustBeHandler(handler any) {
	if _, ok := handler.(app.HandlerFunc); ok {
		return
	}
	if fn, ok := handler.(func(context.Context, *app.RequestContext)); ok && fn != nil {
		panic("router: wrap hertz handlers with app.HandlerFunc")
	}
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() < 1 || t.NumIn() > 2 || t.NumOut() != 1 {
		panic(fmt.Sprintf("router: invalid handler %T", handler))
	}
	if t.In(0) != reflect.TypeOf((*mycontext.Context)(nil)) || t.Out(0) != responseType {
		panic(fmt.Sprintf("router: invalid handler %T", handler))
	}
	if t.NumIn() == 2 && t.In(1).Kind() != reflect.Ptr {
		panic(fmt.Sprintf("router: param of %T must be a pointer", handler))
	}
}

// handleResults 写出处理函数返回的 *Response；返回 nil 时继续执行下一个处理函数
func handleResults(c *mycontext.Context, results []reflect.Value) bool {
	if len(results) == 0 || results[0].IsNil() {
		return true
	}
	if response, ok := results[0].Interface().(*mycontext.Response); ok {
		response.Write(c)
	}
	return false
}

// Wrap 把单个处理函数转换为 hertz HandlerFunc，用于 NoRoute 等不经过路由组的场景
func Wrap(handler any) app.HandlerFunc {
	return adapt(handler)
}
