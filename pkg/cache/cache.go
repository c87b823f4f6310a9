package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss 键不存在或已过期
var ErrMiss = errors.New("cache: miss")

// ObjectStore 带 TTL 的对象缓存
type ObjectStore interface {
	// GetObject 读取并反序列化到 dest；键不存在时返回 ErrMiss
	GetObject(ctx context.Context, key string, dest any) error

	// SetObject 序列化并写入，ttl 为 0 时使用默认过期时间
	SetObject(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
}

// Options 缓存选项
type Options struct {
	// 默认过期时间
	DefaultTTL time.Duration

	// 键前缀
	KeyPrefix string

	// 序列化方式
	Serializer Serializer
}

// Serializer 序列化器接口
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
}
