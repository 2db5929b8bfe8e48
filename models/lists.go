package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
)

// IDList は順序付きのID集合で、jsonb カラムとして保存されます。
type IDList []uint

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uint(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IDList) Scan(src interface{}) error {
	return scanJSON(src, (*[]uint)(l))
}

func (l IDList) Contains(id uint) bool {
	return slices.Contains(l, id)
}

// Without は remove に含まれないIDだけを順序を保ったまま返します。
func (l IDList) Without(remove []uint) IDList {
	out := make(IDList, 0, len(l))
	for _, id := range l {
		if !slices.Contains(remove, id) {
			out = append(out, id)
		}
	}
	return out
}

// NumberList は使用済みの乱数を保持します。
type NumberList []int

func (l NumberList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *NumberList) Scan(src interface{}) error {
	return scanJSON(src, (*[]int)(l))
}

func (l NumberList) Contains(n int) bool {
	return slices.Contains(l, n)
}

func scanJSON(src interface{}, dst interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported list column type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
