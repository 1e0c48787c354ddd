package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/ayxworxfr/go_backoffice/internal/domain/vo"
)

//go:embed templates/*.html
var files embed.FS

// 页面模板，每个页面都套用 layout
const (
	PageHome         = "home"
	PageLogin        = "login"
	PageRegister     = "register"
	PageList         = "list"
	PageLoading      = "loading"
	PageUnauthorized = "unauthorized"
	PageNotFound     = "notfound"
	PageAlert        = "alert"
	PageError        = "error"
)

// 局部模板，用于异步刷新
const (
	PartialRows  = "rows"
	PartialModal = "modal"
	PartialLines = "lines"
)

var pages = []string{PageHome, PageLogin, PageRegister, PageList, PageLoading, PageUnauthorized, PageNotFound, PageAlert, PageError}

var funcs = template.FuncMap{
	"inc": func(n int) int { return n + 1 },
}

// NavItem 导航菜单项
type NavItem struct {
	Title  string
	Href   string
	Active bool
}

// Flash 一次性提示
type Flash struct {
	Kind    string // success / danger / warning / info
	Message string
}

// PageData 布局需要的数据；Content 是页面自己的视图模型
type PageData struct {
	Title        string
	User         *vo.User
	Dark         bool
	Flash        *Flash
	Nav          []NavItem
	CurrentPath  string
	RefreshAfter int
	Content      any
}

// Renderer 预先解析好的模板集合
type Renderer struct {
	pages    map[string]*template.Template
	partials *template.Template
}

// New 解析内嵌模板，模板错误在启动时暴露
func New() (*Renderer, error) {
	base, err := template.New("base").Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/rows.html", "templates/modal.html", "templates/lines.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages)), partials: base}
	for _, name := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFS(files, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		r.pages[name] = clone
	}
	return r, nil
}

// MustNew 解析失败直接 panic
func MustNew() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Page 渲染完整页面
func (r *Renderer) Page(name string, data *PageData) ([]byte, error) {
	tmpl, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("render page %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Partial 渲染局部模板
func (r *Renderer) Partial(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.partials.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render partial %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
