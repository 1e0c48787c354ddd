package params

import (
	"github.com/ayxworxfr/go_backoffice/internal/domain/types"
	"github.com/shopspring/decimal"
)

// PurchaseOrderLine 采购单明细行
type PurchaseOrderLine struct {
	ProductID    string          `mapstructure:"product_id" json:"product_id"`
	Quantity     decimal.Decimal `mapstructure:"quantity" json:"quantity" vd:"$>0"`
	UnitPrice    decimal.Decimal `mapstructure:"unit_price" json:"unit_price" vd:"$>=0"`
	DeliveryDate *types.Date     `mapstructure:"delivery_date" json:"delivery_date,omitempty"`
}

// PurchaseOrderLines 表单提交的全部明细
type PurchaseOrderLines struct {
	Lines []PurchaseOrderLine `mapstructure:"lines" json:"lines"`
}
