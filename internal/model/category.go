package model

import "fmt"

// Category：列表分区，仅 beach 与 pool 两个取值
type Category string

const (
	Beach Category = "beach"
	Pool  Category = "pool"
)

// 合并视图的固定顺序：先海滩后泳池
var Categories = []Category{Beach, Pool}

func (c Category) Valid() bool { return c == Beach || c == Pool }

func (c Category) String() string { return string(c) }

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
