package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// 错误类型定义
var (
	ErrInvalidURL        = errors.New("invalid URL")
	ErrJSONMarshal       = errors.New("JSON marshal failed")
	ErrJSONUnmarshal     = errors.New("JSON unmarshal failed")
	ErrStatusNotOK       = errors.New("HTTP status code is not successful")
	ErrEmptyResponseBody = errors.New("response body is empty")
)

// StatusError 非 2xx 响应，保留状态码与原始响应体供上层解析
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s, body: %s", ErrStatusNotOK, e.StatusCode, http.StatusText(e.StatusCode), string(e.Body))
}

// Is 使 errors.Is(err, ErrStatusNotOK) 成立
func (e *StatusError) Is(target error) bool {
	return target == ErrStatusNotOK
}

func IsRetriableError(err error) bool {
	if err == nil {
		return false
	}

	// 检查是否是我们自定义的HTTP 500错误
	if strings.Contains(err.Error(), "server returned status code 5") {
		return true
	}

	// 检查常见的可重试网络错误
	if strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "timeout") ||
		strings.Contains(err.Error(), "TLS handshake timeout") {
		return true
	}

	return false
}

// Observer 每次请求结束后回调，用于指标统计
type Observer func(method, path string, statusCode int, err error, elapsed time.Duration)

// Client 是 HTTP 客户端的主结构体
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Headers    map[string]string
	Retries    int
	Backoff    time.Duration
	observer   Observer
}

// Option 是配置客户端的函数类型
type Option func(*Client)

// RequestOption 单次请求的配置
type RequestOption func(*http.Request)

// WithTimeout 设置HTTP客户端超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.HTTPClient.Timeout = timeout
	}
}

// WithRetries 设置重试次数，0 表示不重试
func WithRetries(retries int) Option {
	return func(c *Client) {
		c.Retries = retries
	}
}

// WithBackoff 设置重试退避时间
func WithBackoff(backoff time.Duration) Option {
	return func(c *Client) {
		c.Backoff = backoff
	}
}

// WithHeader 设置默认请求头
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.Headers[key] = value
	}
}

// WithHTTPClient 使用自定义的HTTP客户端
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

// WithObserver 设置请求观察者
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithBearerToken 为单次请求附加 Bearer Token
func WithBearerToken(token string) RequestOption {
	return func(req *http.Request) {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithRequestHeader 为单次请求设置请求头
func WithRequestHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// NewClient 创建一个新的 HTTP 客户端
func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Headers: make(map[string]string),
		Retries: 3,                      // 默认重试3次
		Backoff: 500 * time.Millisecond, // 默认退避500毫秒
	}

	// 应用选项
	for _, opt := range opts {
		opt(client)
	}

	// 设置默认Content-Type
	if _, exists := client.Headers["Content-Type"]; !exists {
		client.Headers["Content-Type"] = "application/json"
	}
	if _, exists := client.Headers["Accept"]; !exists {
		client.Headers["Accept"] = "application/json"
	}

	return client
}

// SetHeader 设置一个 HTTP 头
func (c *Client) SetHeader(key, value string) {
	c.Headers[key] = value
}

// request 是发送 HTTP 请求的通用方法
func (c *Client) request(ctx context.Context, method, path string, params url.Values, body any, opts ...RequestOption) (*http.Response, error) {
	// 构建URL
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, err)
	}

	// 添加查询参数
	if params != nil {
		u.RawQuery = params.Encode()
	}

	// 请求体先读入内存，重试时可重复使用
	var payload []byte
	if body != nil {
		if reader, ok := body.(io.Reader); ok {
			if payload, err = io.ReadAll(reader); err != nil {
				return nil, err
			}
		} else {
			if payload, err = json.Marshal(body); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrJSONMarshal, err)
			}
		}
	}

	start := time.Now()
	var resp *http.Response
	for i := 0; i <= c.Retries; i++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, reqErr := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
		if reqErr != nil {
			return nil, reqErr
		}
		for key, value := range c.Headers {
			req.Header.Set(key, value)
		}
		for _, opt := range opts {
			opt(req)
		}

		resp, err = c.HTTPClient.Do(req)

		// 处理网络错误（如连接超时）
		if err != nil {
			if !IsRetriableError(err) || ctx.Err() != nil {
				c.observe(method, path, 0, err, start)
				return nil, err
			}
		} else if resp.StatusCode >= 500 && resp.StatusCode < 600 && i < c.Retries {
			// 关闭响应体以便重试
			resp.Body.Close()
			err = fmt.Errorf("server returned status code %d", resp.StatusCode)
		} else {
			// 非500状态码或已用完重试次数
			break
		}

		// 重试前等待（使用指数退避）
		if i < c.Retries {
			backoffTime := c.Backoff * time.Duration(1<<i)
			select {
			case <-time.After(backoffTime):
				continue
			case <-ctx.Done():
				c.observe(method, path, 0, ctx.Err(), start)
				return nil, ctx.Err()
			}
		}
	}

	if err != nil && resp == nil {
		c.observe(method, path, 0, err, start)
		return nil, err
	}
	c.observe(method, path, resp.StatusCode, nil, start)
	return resp, nil
}

func (c *Client) observe(method, path string, statusCode int, err error, start time.Time) {
	if c.observer != nil {
		c.observer(method, path, statusCode, err, time.Since(start))
	}
}

// Get 发送 GET 请求
func (c *Client) Get(ctx context.Context, path string, params url.Values, opts ...RequestOption) (*http.Response, error) {
	return c.request(ctx, http.MethodGet, path, params, nil, opts...)
}

// Post 发送 POST 请求
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*http.Response, error) {
	return c.request(ctx, http.MethodPost, path, nil, body, opts...)
}

// Put 发送 PUT 请求
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*http.Response, error) {
	return c.request(ctx, http.MethodPut, path, nil, body, opts...)
}

// Delete 发送 DELETE 请求
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	return c.request(ctx, http.MethodDelete, path, nil, nil, opts...)
}

// DoJSON 发送任意方法的请求并解析JSON响应
func (c *Client) DoJSON(ctx context.Context, method, path string, params url.Values, body, response any, opts ...RequestOption) error {
	resp, err := c.request(ctx, method, path, params, body, opts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleJSONResponse(resp, response)
}

// GetJSON 发送GET请求并解析JSON响应
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, response any, opts ...RequestOption) error {
	return c.DoJSON(ctx, http.MethodGet, path, params, nil, response, opts...)
}

// PostJSON 发送POST请求并解析JSON响应
func (c *Client) PostJSON(ctx context.Context, path string, body, response any, opts ...RequestOption) error {
	return c.DoJSON(ctx, http.MethodPost, path, nil, body, response, opts...)
}

// PutJSON 发送PUT请求并解析JSON响应
func (c *Client) PutJSON(ctx context.Context, path string, body, response any, opts ...RequestOption) error {
	return c.DoJSON(ctx, http.MethodPut, path, nil, body, response, opts...)
}

// DeleteJSON 发送DELETE请求并解析JSON响应
func (c *Client) DeleteJSON(ctx context.Context, path string, response any, opts ...RequestOption) error {
	return c.DoJSON(ctx, http.MethodDelete, path, nil, nil, response, opts...)
}

// FilePart multipart 请求中的文件
type FilePart struct {
	Field    string
	FileName string
	Content  io.Reader
}

// MultipartJSON 以 multipart/form-data 发送请求并解析JSON响应
func (c *Client) MultipartJSON(ctx context.Context, method, path string, fields map[string][]string, files []FilePart, response any, opts ...RequestOption) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, values := range fields {
		for _, value := range values {
			if err := writer.WriteField(key, value); err != nil {
				return err
			}
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.Field, file.FileName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	opts = append(opts, WithRequestHeader("Content-Type", writer.FormDataContentType()))
	return c.DoJSON(ctx, method, path, nil, &buf, response, opts...)
}

// handleJSONResponse 处理JSON响应
func (c *Client) handleJSONResponse(resp *http.Response, response any) error {
	// 读取响应体
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// 检查状态码
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: bodyBytes}
	}

	// 如果响应体为空且不需要解析到结构体，则直接返回
	if len(bodyBytes) == 0 {
		if response == nil {
			return nil
		}
		return ErrEmptyResponseBody
	}
	if response == nil {
		return nil
	}

	// 解析JSON
	if err := json.Unmarshal(bodyBytes, response); err != nil {
		return fmt.Errorf("%w: %s, body: %s", ErrJSONUnmarshal, err, string(bodyBytes))
	}

	return nil
}
