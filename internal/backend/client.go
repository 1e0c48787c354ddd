// Package backend 是远端 REST API 的客户端，所有请求都携带用户的 Bearer Token。
package backend

import (
	"context"
	"net/url"

	"github.com/ayxworxfr/go_backoffice/pkg/httpclient"
)

// Client 后端 API 客户端
type Client struct {
	http *httpclient.Client
}

// New 创建客户端；默认不重试，opts 可覆盖
func New(baseURL string, opts ...httpclient.Option) *Client {
	opts = append([]httpclient.Option{httpclient.WithRetries(0)}, opts...)
	return &Client{http: httpclient.NewClient(baseURL, opts...)}
}

// BaseURL 后端地址
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) do(ctx context.Context, token, method, path string, params url.Values, body, out any) error {
	err := c.http.DoJSON(ctx, method, path, params, body, out, httpclient.WithBearerToken(token))
	return translate(err)
}

// Ping 请求健康检查地址，返回状态码
func (c *Client) Ping(ctx context.Context, path string) (int, error) {
	resp, err := c.http.Get(ctx, path, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *Client) doMultipart(ctx context.Context, token, method, path string, fields map[string][]string, files []httpclient.FilePart, out any) error {
	err := c.http.MultipartJSON(ctx, method, path, fields, files, out, httpclient.WithBearerToken(token))
	return translate(err)
}
