package models

import "time"

// SessionValue 会话存储中的一项，sql 驱动使用
type SessionValue struct {
	ID         uint64    `xorm:"pk autoincr bigint unsigned 'id'" json:"id"`
	SessionKey string    `xorm:"char(96) notnull unique(sid_key) 'session_key'" json:"-"`
	Name       string    `xorm:"varchar(32) notnull unique(sid_key) 'name'" json:"name"`
	Value      string    `xorm:"text 'value'" json:"value"`
	ExpireAt   time.Time `xorm:"datetime notnull index 'expire_at'" json:"expire_at"`
	CreateTime time.Time `xorm:"created" json:"create_time"`
	UpdateTime time.Time `xorm:"updated" json:"update_time"`
}

// TableName 表名
func (SessionValue) TableName() string {
	return "session_value"
}
