package context

// 业务码前缀规则：
// SUCCESS_*    : 成功类（100000-199999）
// CLIENT_*     : 客户端错误（200000-299999）
// SERVER_*     : 服务端错误（300000-399999）
// THIRD_PARTY_*: 第三方服务错误（400000-499999）
// SYSTEM_*     : 系统错误（500000-599999）

// 成功类
const (
	SUCCESS_OK         = 100000 // 操作成功
	SUCCESS_NO_CONTENT = 100001 // 成功但无返回内容
	SUCCESS_ACCEPTED   = 100002 // 请求已接受
)

// 客户端错误类
const (
	CLIENT_PARAM_ERROR       = 200001 // 参数错误
	CLIENT_NOT_FOUND         = 200002 // 资源不存在
	CLIENT_UNAUTHORIZED      = 200003 // 未认证
	CLIENT_FORBIDDEN         = 200004 // 禁止访问
	CLIENT_TOO_MANY_REQUESTS = 200006 // 请求频率过高
	CLIENT_VALIDATION_FAILED = 200010 // 数据验证失败
)

// 服务端错误类
const (
	SERVER_INTERNAL_ERROR      = 300001 // 服务端内部错误
	SERVER_RATE_LIMIT          = 300004 // 接口限流
	SERVER_SERVICE_UNAVAILABLE = 300005 // 服务不可用
)

// 第三方服务错误类
const (
	THIRD_PARTY_API_ERROR = 400006 // 后端 API 调用错误
)

// 系统错误类
const (
	SYSTEM_ERROR = 500001 // 系统错误
)
