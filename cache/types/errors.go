package types

import "errors"

// ErrCacheMiss 缓存未命中错误，各后端实现共用
var ErrCacheMiss = errors.New("cache miss")
