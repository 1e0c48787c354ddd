package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ayxworxfr/go_backoffice/pkg/export"
	"github.com/ayxworxfr/go_backoffice/pkg/httpclient"
)

// Record 单条记录
type Record = map[string]any

// ListQuery 列表查询参数
type ListQuery struct {
	Search  string
	Page    int
	PerPage int
}

// Values 编码为 search / page / per_page
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	return v
}

// ListResult 列表接口返回 {data, total}
type ListResult struct {
	Data  []Record `json:"data"`
	Total int      `json:"total"`
}

// Option 下拉选项
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ItemPath 拼接 {endpoint}/{id}
func ItemPath(endpoint, id string) string {
	return strings.TrimSuffix(endpoint, "/") + "/" + url.PathEscape(id)
}

// List GET {endpoint}?search=&page=&per_page=
func (c *Client) List(ctx context.Context, token, endpoint string, q ListQuery) (*ListResult, error) {
	var rsp ListResult
	if err := c.do(ctx, token, http.MethodGet, endpoint, q.Values(), nil, &rsp); err != nil {
		return nil, err
	}
	if rsp.Data == nil {
		rsp.Data = []Record{}
	}
	return &rsp, nil
}

// Get GET {endpoint}/{id}；兼容 {data: {...}} 包装
func (c *Client) Get(ctx context.Context, token, endpoint, id string) (Record, error) {
	var rsp Record
	if err := c.do(ctx, token, http.MethodGet, ItemPath(endpoint, id), nil, nil, &rsp); err != nil {
		return nil, err
	}
	return unwrap(rsp), nil
}

// Create POST {endpoint}；有文件时使用 multipart
func (c *Client) Create(ctx context.Context, token, endpoint string, body Record, files []httpclient.FilePart) (Record, error) {
	return c.write(ctx, token, http.MethodPost, endpoint, body, files)
}

// Update PUT {endpoint}/{id}；有文件时使用 multipart
func (c *Client) Update(ctx context.Context, token, endpoint, id string, body Record, files []httpclient.FilePart) (Record, error) {
	return c.write(ctx, token, http.MethodPut, ItemPath(endpoint, id), body, files)
}

func (c *Client) write(ctx context.Context, token, method, path string, body Record, files []httpclient.FilePart) (Record, error) {
	var rsp Record
	var err error
	if len(files) > 0 {
		err = c.doMultipart(ctx, token, method, path, formFields(body), files, &rsp)
	} else {
		err = c.do(ctx, token, method, path, nil, body, &rsp)
	}
	if err != nil {
		return nil, err
	}
	return unwrap(rsp), nil
}

// Delete DELETE {endpoint}/{id}
func (c *Client) Delete(ctx context.Context, token, endpoint, id string) error {
	return c.do(ctx, token, http.MethodDelete, ItemPath(endpoint, id), nil, nil, nil)
}

// Trash 软删除 PUT {endpoint}/trash/{id}
func (c *Client) Trash(ctx context.Context, token, endpoint, id string) error {
	return c.do(ctx, token, http.MethodPut, ItemPath(endpoint+"/trash", id), nil, nil, nil)
}

// Restore 恢复 PUT {endpoint}/restore/{id}
func (c *Client) Restore(ctx context.Context, token, endpoint, id string) error {
	return c.do(ctx, token, http.MethodPut, ItemPath(endpoint+"/restore", id), nil, nil, nil)
}

// Options 拉取下拉选项；接口可以返回数组或 {data: [...]}。valueKey、labelKey 默认为 id、name
func (c *Client) Options(ctx context.Context, token, endpoint, valueKey, labelKey string) ([]Option, error) {
	if valueKey == "" {
		valueKey = "id"
	}
	if labelKey == "" {
		labelKey = "name"
	}
	var raw json.RawMessage
	params := url.Values{"per_page": {"1000"}}
	if err := c.do(ctx, token, http.MethodGet, endpoint, params, nil, &raw); err != nil {
		return nil, err
	}

	var rows []Record
	if err := json.Unmarshal(raw, &rows); err != nil {
		var wrapped ListResult
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("unexpected options payload from %s: %w", endpoint, err)
		}
		rows = wrapped.Data
	}

	options := make([]Option, 0, len(rows))
	for _, row := range rows {
		options = append(options, Option{
			Value: export.Text(row[valueKey]),
			Label: export.Text(export.Lookup(row, labelKey)),
		})
	}
	return options, nil
}

func unwrap(rsp Record) Record {
	if inner, ok := rsp["data"].(map[string]any); ok && len(rsp) == 1 {
		return inner
	}
	if rsp == nil {
		return Record{}
	}
	return rsp
}

// formFields 将 JSON 结构的请求体拍平成 multipart 文本字段；数组使用 key[] 重复
func formFields(body Record) map[string][]string {
	fields := make(map[string][]string, len(body))
	for k, v := range body {
		switch val := v.(type) {
		case nil:
			continue
		case []string:
			fields[k+"[]"] = append(fields[k+"[]"], val...)
		case []any:
			for _, item := range val {
				fields[k+"[]"] = append(fields[k+"[]"], export.Text(item))
			}
		case bool:
			if val {
				fields[k] = []string{"1"}
			} else {
				fields[k] = []string{"0"}
			}
		default:
			fields[k] = []string{export.Text(val)}
		}
	}
	return fields
}
