package params

// ListRequest 列表页与行刷新的查询参数；未出现的参数沿用加载器的当前值
type ListRequest struct {
	Search  *string `query:"search"`
	Page    int     `query:"page" vd:"$>=0"`
	PerPage int     `query:"per_page" vd:"$>=0&&$<=1000"`
	Modal   string  `query:"modal"`
	ID      string  `query:"id"`
}

// ExportRequest 导出当前页
type ExportRequest struct {
	Format string `query:"format" vd:"len($)>0"`
}

// ItemRequest 针对单条记录的操作
type ItemRequest struct {
	ID string `path:"id" vd:"len($)>0"`
}

// ThemeRequest 切换深色模式后返回的页面
type ThemeRequest struct {
	Redirect string `form:"redirect"`
}

// LoginPageRequest 登录成功后跳转的页面
type LoginPageRequest struct {
	Next string `query:"next" form:"next"`
}
