package handler

import (
	"context"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/backend"
	"github.com/ayxworxfr/go_backoffice/internal/domain/params"
	"github.com/ayxworxfr/go_backoffice/internal/form"
	"github.com/ayxworxfr/go_backoffice/internal/gate"
	"github.com/ayxworxfr/go_backoffice/internal/metrics"
	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/internal/table"
	"github.com/ayxworxfr/go_backoffice/internal/views"
	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/export"
	"github.com/ayxworxfr/go_backoffice/pkg/httpclient"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// waitTimeout 页面渲染前最多等待表格加载的时间，超时按加载中渲染
const waitTimeout = 10 * time.Second

const (
	invalidMessage = "Please correct the errors below."
	saveMessage    = "Failed to save. Please try again."
)

var errInvalidLines = errors.New("invalid purchase order lines")

// IResourceHandler 通用 CRUD 资源页
type IResourceHandler interface {
	List(c *mycontext.Context, req *params.ListRequest) *mycontext.Response
	Rows(c *mycontext.Context, req *params.ListRequest) *mycontext.Response
	Export(c *mycontext.Context, req *params.ExportRequest) *mycontext.Response
	Create(c *mycontext.Context) *mycontext.Response
	Update(c *mycontext.Context, req *params.ItemRequest) *mycontext.Response
	Trash(c *mycontext.Context, req *params.ItemRequest) *mycontext.Response
	Restore(c *mycontext.Context, req *params.ItemRequest) *mycontext.Response
	Delete(c *mycontext.Context, req *params.ItemRequest) *mycontext.Response
}

// ResourceHandler 一个 Resource 的列表、弹窗、导出与增删改
type ResourceHandler struct {
	*Base
	res *Resource
}

var _ IResourceHandler = (*ResourceHandler)(nil)

func NewResourceHandler(base *Base, res *Resource) *ResourceHandler {
	return &ResourceHandler{Base: base, res: res}
}

// Resource 处理器对应的资源定义
func (h *ResourceHandler) Resource() *Resource {
	return h.res
}

// loader 当前会话的表格 loader，不存在时创建并发起首次加载
func (h *ResourceHandler) loader(c *mycontext.Context, token string) *table.Loader {
	sid := c.SessionID()
	fetcher := table.FetcherFunc(func(ctx context.Context, q table.Query) (*table.Page, error) {
		rsp, err := h.Backend.List(ctx, token, q.Endpoint, backend.ListQuery{
			Search:  q.Search,
			Page:    q.Page,
			PerPage: q.PerPage,
		})
		if err != nil {
			if backend.IsUnauthorized(err) {
				// 令牌失效：清掉会话，下一次请求会被带到登录页
				h.Auth.Invalidate(context.Background(), sid)
			}
			return nil, err
		}
		return &table.Page{Data: rsp.Data, Total: rsp.Total}, nil
	})
	return h.Tables.Get(sid, h.res.Key, h.res.Endpoint, fetcher)
}

// apply 把请求参数应用到 loader；与当前查询相同的参数不会触发请求，
// 搜索词交给 loader 与防抖中的输入比较
func (h *ResourceHandler) apply(loader *table.Loader, req *params.ListRequest) {
	if req == nil {
		return
	}
	current := loader.State().Query
	if req.PerPage > 0 && req.PerPage != current.PerPage {
		loader.SetPageSize(req.PerPage)
	}
	if req.Page > 0 && req.Page != loader.State().Query.Page {
		loader.SetPage(req.Page)
	}
	if req.Search != nil {
		loader.SetSearch(strings.TrimSpace(*req.Search))
	}
}

// load 应用参数并等待加载完成；会话在加载中被判定失效时返回跳转登录页的响应
func (h *ResourceHandler) load(c *mycontext.Context, req *params.ListRequest) (table.State, string, *mycontext.Response) {
	token, rsp := h.token(c)
	if rsp != nil {
		return table.State{}, "", rsp
	}
	loader := h.loader(c, token)
	h.apply(loader, req)

	ctx, cancel := context.WithTimeout(c.Context(), waitTimeout)
	defer cancel()
	state, err := loader.Wait(ctx)
	if err != nil {
		logger.Debug(c.Context(), "Table still loading", zap.String("table", h.res.Key), zap.Error(err))
	}
	if _, rsp := h.token(c); rsp != nil {
		return table.State{}, "", h.toLogin(c, "Your session has expired. Please sign in again.")
	}
	return state, token, nil
}

func (h *ResourceHandler) listView(c *mycontext.Context, state table.State) *views.ListView {
	auth := h.state(c)
	dt := table.NewDataTable(h.res.Key, h.res.Title, h.res.Path, h.res.Columns, state, h.Table.PageSizes)
	rows := make([]views.RowView, 0, len(state.Data))
	for _, row := range state.Data {
		rows = append(rows, views.RowView{
			ID:      h.res.RowID(row),
			Trashed: h.res.Trashed(row),
			Cells:   dt.Cells(row),
		})
	}
	return &views.ListView{
		Table:          dt,
		Rows:           rows,
		CanCreate:      gate.Check(auth, h.res.Requirement(ActionCreate)),
		CanEdit:        gate.Check(auth, h.res.Requirement(ActionEdit)),
		CanDelete:      gate.Check(auth, h.res.Requirement(ActionDelete)),
		SoftDelete:     h.res.SoftDelete,
		DebounceMillis: h.Table.DebounceDuration().Milliseconds(),
	}
}

// forbidden 处理函数内部的权限判定失败
func (h *ResourceHandler) forbidden(c *mycontext.Context, action string) *mycontext.Response {
	logger.Info(c.Context(), "Access denied by gate",
		zap.String("path", c.Path()), zap.String("resource", h.res.Key), zap.String("action", action))
	if c.WantsJSON() {
		return mycontext.Forbidden("insufficient role or permission")
	}
	return mycontext.Found(gate.UnauthorizedPath)
}

// @route Get /{resource}
func (h *ResourceHandler) List(c *mycontext.Context, req *params.ListRequest) *mycontext.Response {
	state, token, rsp := h.load(c, req)
	if rsp != nil {
		return rsp
	}
	view := h.listView(c, state)

	if req.Modal != "" {
		mode, ok := form.ParseMode(req.Modal)
		if !ok {
			return h.page(c, consts.StatusNotFound, views.PageNotFound, "Not found", nil)
		}
		action := ModeAction(mode)
		if !gate.Check(h.state(c), h.res.Requirement(action)) {
			return h.forbidden(c, action)
		}
		modal, rsp := h.openModal(c, token, mode, req.ID)
		if rsp != nil {
			return rsp
		}
		view.Modal = modal
	}
	return h.page(c, consts.StatusOK, views.PageList, h.res.Title, view)
}

// @route Get /{resource}/rows
func (h *ResourceHandler) Rows(c *mycontext.Context, req *params.ListRequest) *mycontext.Response {
	state, _, rsp := h.load(c, req)
	if rsp != nil {
		return rsp
	}
	if c.WantsJSON() {
		return mycontext.Success(map[string]any{
			"data":     state.Data,
			"total":    state.Total,
			"page":     state.Query.Page,
			"per_page": state.Query.PerPage,
			"search":   state.Query.Search,
			"phase":    state.Phase.String(),
			"error":    state.Error,
		})
	}
	body, err := h.Views.Partial(views.PartialRows, h.listView(c, state))
	if err != nil {
		logger.Error(c.Context(), "Render rows failed", zap.String("table", h.res.Key), zap.Error(err))
		return mycontext.InternalError(err)
	}
	return mycontext.HTML(consts.StatusOK, body)
}

// @route Get /{resource}/export
func (h *ResourceHandler) Export(c *mycontext.Context, req *params.ExportRequest) *mycontext.Response {
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		metrics.ObserveExport("unknown", err)
		return h.alert(c, "Export failed", err.Error(), h.res.Path)
	}
	state, _, rsp := h.load(c, nil)
	if rsp != nil {
		return rsp
	}

	file, err := export.Export(format, h.res.Title, h.res.Columns, state.Data)
	metrics.ObserveExport(string(format), err)
	if err != nil {
		logger.Warn(c.Context(), "Export failed",
			zap.String("table", h.res.Key), zap.String("format", string(format)), zap.Error(err))
		message := "Export failed: " + err.Error()
		if errors.Is(err, export.ErrEmptyDataset) {
			message = "There is no data to export."
		}
		return h.alert(c, "Export failed", message, h.res.Path)
	}
	logger.Info(c.Context(), "Export generated",
		zap.String("table", h.res.Key), zap.String("format", string(format)), zap.Int("rows", len(state.Data)))
	if file.Inline {
		return mycontext.Attachment(file.ContentType, "", file.Body)
	}
	return mycontext.Attachment(file.ContentType, file.FileName, file.Body)
}

// openModal 准备 ?modal= 指定的弹窗；记录不存在时返回 404 页
func (h *ResourceHandler) openModal(c *mycontext.Context, token string, mode form.Mode, id string) (*views.ModalView, *mycontext.Response) {
	ctx := c.Context()
	var record backend.Record
	if mode != form.ModeCreate {
		if id == "" {
			return nil, h.page(c, consts.StatusNotFound, views.PageNotFound, "Not found", nil)
		}
		var err error
		record, err = h.Backend.Get(ctx, token, h.res.Endpoint, id)
		if err != nil {
			if rsp, ok := h.expired(c, err); ok {
				return nil, rsp
			}
			if backend.IsNotFound(err) {
				return nil, h.page(c, consts.StatusNotFound, views.PageNotFound, "Not found", nil)
			}
			logger.Warn(ctx, "Load record failed", zap.String("table", h.res.Key), zap.String("id", id), zap.Error(err))
			return nil, h.alert(c, h.res.Singular, backend.Message(err, "Failed to load the record."), h.res.Path)
		}
	}

	f := form.New(h.res.Fields, mode, record)
	products := h.loadOptions(ctx, token, f)
	var lines []service.LineForm
	if h.res.Lines != nil {
		lines = service.RecordLineForms(record)
	}
	modal, err := h.modalView(f, id, record, lines, products, nil, "")
	if err != nil {
		logger.Error(ctx, "Render modal failed", zap.String("table", h.res.Key), zap.Error(err))
		return nil, mycontext.HTML(consts.StatusInternalServerError, []byte("Internal Server Error"))
	}
	return modal, nil
}

// loadOptions 并发加载下拉选项；失败只记录日志，下拉框退回静态选项。返回明细中的产品选项
func (h *ResourceHandler) loadOptions(ctx context.Context, token string, f *form.Form) []form.Option {
	if f.Mode() == form.ModeView && h.res.Lines == nil && len(f.Fields().Selects()) == 0 {
		return nil
	}
	var (
		g        errgroup.Group
		selects  = f.Fields().Selects()
		loaded   = make([][]form.Option, len(selects))
		products []form.Option
	)
	for i, s := range selects {
		if s.OptionsEndpoint == "" {
			continue
		}
		g.Go(func() error {
			opts, err := h.Backend.Options(ctx, token, s.OptionsEndpoint, s.OptionValue, s.OptionLabel)
			if err != nil {
				return errors.Wrapf(err, "load options for %s", s.Key)
			}
			loaded[i] = toFormOptions(opts)
			return nil
		})
	}
	if e := h.res.Lines; e != nil {
		g.Go(func() error {
			opts, err := h.Backend.Options(ctx, token, e.ProductEndpoint, e.ProductValue, e.ProductLabel)
			if err != nil {
				return errors.Wrap(err, "load line products")
			}
			products = toFormOptions(opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn(ctx, "Load select options failed", zap.String("table", h.res.Key), zap.Error(err))
	}
	for i, s := range selects {
		if loaded[i] != nil {
			f.SetOptions(s.Key, loaded[i])
		}
	}
	return products
}

func toFormOptions(opts []backend.Option) []form.Option {
	out := make([]form.Option, 0, len(opts))
	for _, o := range opts {
		out = append(out, form.Option{Value: o.Value, Label: o.Label})
	}
	return out
}

func (h *ResourceHandler) modalView(f *form.Form, id string, record backend.Record, lines []service.LineForm,
	products []form.Option, lineErrors map[string][]string, message string) (*views.ModalView, error) {
	mode := f.Mode()
	var (
		body template.HTML
		err  error
	)
	if mode == form.ModeView {
		body, err = form.RenderView(f, record)
	} else {
		body, err = form.Render(f)
	}
	if err != nil {
		return nil, err
	}
	if h.res.Lines != nil {
		extra, err := h.res.Lines.Render(h.Views, lines, products, lineErrors, mode == form.ModeView)
		if err != nil {
			return nil, err
		}
		body += extra
	}

	modal := &views.ModalView{
		CloseURL:  h.res.Path,
		Message:   message,
		Body:      body,
		ReadOnly:  mode == form.ModeView,
		Multipart: h.res.Multipart(),
	}
	switch mode {
	case form.ModeCreate:
		modal.Title = "New " + h.res.Singular
		modal.Action = h.res.Path
	case form.ModeEdit:
		modal.Title = "Edit " + h.res.Singular
		modal.Action = h.res.Path + "/" + id
	default:
		modal.Title = h.res.Singular + " details"
	}
	return modal, nil
}

// @route Post /{resource}
func (h *ResourceHandler) Create(c *mycontext.Context) *mycontext.Response {
	return h.submit(c, form.ModeCreate, "")
}

// @route Post /{resource}/:id
func (h *ResourceHandler) Update(c *mycontext.Context, req *params.ItemRequest) *mycontext.Response {
	return h.submit(c, form.ModeEdit, req.ID)
}

// submit 校验并提交弹窗表单；失败时带着错误重新打开弹窗
func (h *ResourceHandler) submit(c *mycontext.Context, mode form.Mode, id string) *mycontext.Response {
	action := ModeAction(mode)
	if !gate.Check(h.state(c), h.res.Requirement(action)) {
		return h.forbidden(c, action)
	}
	token, rsp := h.token(c)
	if rsp != nil {
		return rsp
	}
	ctx := c.Context()

	values := c.FormValues()
	f := form.New(h.res.Fields, mode, nil)
	f.Bind(values)

	var (
		lines      []service.LineForm
		decoded    params.PurchaseOrderLines
		lineErrors map[string][]string
	)
	if h.res.Lines != nil {
		lines = service.LineForms(values)
		decoded, lineErrors = service.DecodeLines(lines)
	}

	files, closeFiles, err := h.files(c, mode)
	if err != nil {
		logger.Warn(ctx, "Read uploaded files failed", zap.String("table", h.res.Key), zap.Error(err))
		return mycontext.ParamError(err)
	}
	defer closeFiles()

	var saved backend.Record
	err = f.Submit(ctx, func(ctx context.Context, payload map[string]any) error {
		if len(lineErrors) > 0 {
			return errInvalidLines
		}
		if h.res.Lines != nil {
			payload[service.LinesKey] = decoded.Lines
		}
		var err error
		if mode == form.ModeCreate {
			saved, err = h.Backend.Create(ctx, token, h.res.Endpoint, payload, files)
		} else {
			saved, err = h.Backend.Update(ctx, token, h.res.Endpoint, id, payload, files)
		}
		return err
	})
	if err == nil {
		h.refetch(c)
		logger.Info(ctx, "Record saved", zap.String("table", h.res.Key), zap.String("mode", string(mode)), zap.String("id", id))
		if c.WantsJSON() {
			return mycontext.Success(saved)
		}
		setFlash(c, "success", h.res.Singular+lo.Ternary(mode == form.ModeCreate, " created.", " updated."))
		return mycontext.Redirect(h.res.Path)
	}

	if rsp, ok := h.expired(c, err); ok {
		return rsp
	}
	status := consts.StatusUnprocessableEntity
	message := invalidMessage
	switch {
	case errors.Is(err, form.ErrInvalid), errors.Is(err, errInvalidLines):
		// 本地校验失败，表单与明细的错误都已就绪
	case backend.FieldErrors(err) != nil:
		serverErrors := backend.FieldErrors(err)
		f.MergeServerErrors(serverErrors)
		lineErrors = mergeLineErrors(lineErrors, serverErrors)
		message = backend.Message(err, invalidMessage)
	default:
		logger.Error(ctx, "Save record failed", zap.String("table", h.res.Key), zap.String("mode", string(mode)), zap.Error(err))
		status = consts.StatusOK
		message = backend.Message(err, saveMessage)
	}

	if c.WantsJSON() {
		if status == consts.StatusUnprocessableEntity {
			all := f.Errors()
			if all == nil {
				all = make(map[string][]string)
			}
			for k, v := range lineErrors {
				all[k] = v
			}
			return mycontext.ValidationFailed(all)
		}
		return mycontext.ThirdPartyError("backend", message)
	}

	state, _, rsp := h.load(c, nil)
	if rsp != nil {
		return rsp
	}
	products := h.loadOptions(ctx, token, f)
	view := h.listView(c, state)
	view.Modal, err = h.modalView(f, id, nil, lines, products, lineErrors, message)
	if err != nil {
		logger.Error(ctx, "Render modal failed", zap.String("table", h.res.Key), zap.Error(err))
		return mycontext.HTML(consts.StatusInternalServerError, []byte("Internal Server Error"))
	}
	return h.page(c, status, views.PageList, h.res.Title, view)
}

// mergeLineErrors 把后端返回的 lines.* 错误并入明细错误
func mergeLineErrors(local, server map[string][]string) map[string][]string {
	out := make(map[string][]string, len(local))
	for k, v := range local {
		out[k] = v
	}
	for k, v := range server {
		if k == service.LinesKey || strings.HasPrefix(k, service.LinesKey+".") {
			out[k] = append(out[k], v...)
		}
	}
	return out
}

// files 收集当前模式可见的文件字段；调用方负责执行返回的 close
func (h *ResourceHandler) files(c *mycontext.Context, mode form.Mode) ([]httpclient.FilePart, func(), error) {
	var (
		parts   []httpclient.FilePart
		closers []io.Closer
	)
	closeAll := func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}
	uploads := c.FormFiles()
	if len(uploads) == 0 {
		return nil, closeAll, nil
	}
	for _, field := range h.res.Fields.Visible(mode) {
		ff, ok := field.(*form.FileField)
		if !ok {
			continue
		}
		headers := uploads[ff.Key]
		if len(headers) == 0 {
			headers = uploads[ff.Key+"[]"]
		}
		name := ff.Key
		if ff.Multiple {
			name = ff.Key + "[]"
		}
		for _, fh := range headers {
			file, err := fh.Open()
			if err != nil {
				closeAll()
				return nil, func() {}, errors.Wrapf(err, "open upload %s", fh.Filename)
			}
			closers = append(closers, file)
			parts = append(parts, httpclient.FilePart{Field: name, FileName: fh.Filename, Content: file})
		}
	}
	return parts, closeAll, nil
}

// refetch 变更成功后刷新当前会话的表格
func (h *ResourceHandler) refetch(c *mycontext.Context) {
	if loader, ok := h.Tables.Lookup(c.SessionID(), h.res.Key); ok {
		loader.Refetch()
	}
}

// @route Post /{resource}/:id/trash
func (h *ResourceHandler) Trash(c *mycontext.Context, req *params.ItemRequest) *mycontext.Response {
	return h.mutate(c, req.ID, "trash", h.Backend.Trash, "moved to trash.")
}

// @route Post /{resource}/:id/restore
func (h *ResourceHandler) Restore(c *mycontext.Context, req *params.ItemRequest) *mycontext.Response {
	return h.mutate(c, req.ID, "restore", h.Backend.Restore, "restored.")
}

// @route Post /{resource}/:id/delete
func (h *ResourceHandler) Delete(c *mycontext.Context, req *params.ItemRequest) *mycontext.Response {
	return h.mutate(c, req.ID, "delete", h.Backend.Delete, "deleted.")
}

type mutation func(ctx context.Context, token, endpoint, id string) error

func (h *ResourceHandler) mutate(c *mycontext.Context, id, op string, fn mutation, done string) *mycontext.Response {
	if !gate.Check(h.state(c), h.res.Requirement(ActionDelete)) {
		return h.forbidden(c, ActionDelete)
	}
	if op != "delete" && !h.res.SoftDelete {
		return h.page(c, consts.StatusNotFound, views.PageNotFound, "Not found", nil)
	}
	token, rsp := h.token(c)
	if rsp != nil {
		return rsp
	}
	ctx := c.Context()
	if err := fn(ctx, token, h.res.Endpoint, id); err != nil {
		if rsp, ok := h.expired(c, err); ok {
			return rsp
		}
		logger.Warn(ctx, "Mutation failed",
			zap.String("table", h.res.Key), zap.String("op", op), zap.String("id", id), zap.Error(err))
		message := backend.Message(err, "Failed to "+op+" the record.")
		if c.WantsJSON() {
			return mycontext.ThirdPartyError("backend", message)
		}
		setFlash(c, "danger", message)
		return mycontext.Redirect(h.res.Path)
	}

	h.refetch(c)
	logger.Info(ctx, "Mutation applied", zap.String("table", h.res.Key), zap.String("op", op), zap.String("id", id))
	if c.WantsJSON() {
		return mycontext.NoContent()
	}
	setFlash(c, "success", h.res.Singular+" "+done)
	return mycontext.Redirect(h.res.Path)
}
