package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date 只含年月日的日期，序列化为 "2006-01-02"
type Date time.Time

// NewDate 创建一个新的 Date 类型（手动指定年月日）
func NewDate(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime 将 time.Time 转为 Date（只保留年月日）
func FromTime(t time.Time) Date {
	return Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
}

// ParseDate 接受 "2006-01-02" 或 RFC3339 时间戳
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return Date(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return FromTime(t), nil
}

// ToTime 返回 time.Time 值
func (d Date) ToTime() time.Time {
	return time.Time(d)
}

// String 返回日期的字符串表示，格式为 "2006-01-02"
func (d Date) String() string {
	return time.Time(d).Format(time.DateOnly)
}

// MarshalJSON 实现 json.Marshaler 接口，格式为 time.DateOnly
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, time.Time(d).Format(time.DateOnly))), nil
}

// UnmarshalJSON 实现 json.Unmarshaler 接口
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
