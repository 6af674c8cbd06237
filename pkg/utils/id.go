package utils

import "github.com/rs/xid"

// NewID 20 位 xid：全局唯一，且按生成时间有序
func NewID() string { return xid.New().String() }
