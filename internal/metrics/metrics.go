// Package metrics 控制台的 Prometheus 指标，启动前由 promauto 注册到默认 registry。
package metrics

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/table"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backoffice"

// BackendRequestsTotal 后端 REST 调用次数
// status 为 HTTP 状态码，传输错误时为 "error"
var BackendRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Total number of REST API calls, by method, route and status.",
	},
	[]string{"method", "route", "status"},
)

// BackendRequestDuration 后端调用耗时
var BackendRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of REST API calls including retries.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// TableFetchesTotal 表格加载次数，被取代的请求不计入
// result: ok / error / cancelled
var TableFetchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "table_fetches_total",
		Help:      "Total number of table page fetches, by endpoint and result.",
	},
	[]string{"endpoint", "result"},
)

// TableFetchDuration 表格加载耗时
var TableFetchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "table_fetch_duration_seconds",
		Help:      "Duration of table page fetches.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"endpoint"},
)

// ExportsTotal 导出次数
var ExportsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exports_total",
		Help:      "Total number of table exports, by format and result.",
	},
	[]string{"format", "result"},
)

// ActiveLoaders 当前驻留的表格加载器数量，由清理任务更新
var ActiveLoaders = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_table_loaders",
		Help:      "Number of table loaders currently held in memory.",
	},
)

// ObserveBackend 作为 httpclient.Observer 使用
func ObserveBackend(method, path string, statusCode int, err error, elapsed time.Duration) {
	route := Route(path)
	status := strconv.Itoa(statusCode)
	if err != nil || statusCode == 0 {
		status = "error"
	}
	BackendRequestsTotal.WithLabelValues(method, route, status).Inc()
	BackendRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveTable 作为 table.Options.Observer 使用
func ObserveTable(q table.Query, elapsed time.Duration, err error) {
	endpoint := Route(q.Endpoint)
	TableFetchesTotal.WithLabelValues(endpoint, result(err)).Inc()
	TableFetchDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveExport 记录一次导出
func ObserveExport(format string, err error) {
	ExportsTotal.WithLabelValues(format, result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

// Route 去掉查询串并把数字 ID 段替换为 :id，控制标签基数
func Route(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.ParseUint(seg, 10, 64); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// Handler 暴露默认 registry
func Handler() app.HandlerFunc {
	return adaptor.HertzHandler(promhttp.Handler())
}
