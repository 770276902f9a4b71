package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
)

const (
	// DefaultNamespace 版面缓存键前缀
	DefaultNamespace = "pdf_layout"
	// DefaultTTL 缓存 7 天
	DefaultTTL = 7 * 24 * time.Hour
)

// DetectFunc 实际的版面检测
type DetectFunc func(ctx context.Context, pdf []byte) (*layout.Document, error)

// LayoutCache 按文档字节的 SHA-256 缓存版面检测结果；存储故障只影响耗时
type LayoutCache struct {
	Store     Store
	Namespace string
	TTL       time.Duration
	Log       logger.Logger
}

func NewLayoutCache(store Store, namespace string, ttl time.Duration, log logger.Logger) *LayoutCache {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &LayoutCache{Store: store, Namespace: namespace, TTL: ttl, Log: log}
}

// Key namespace:hex(sha256(pdf))
func (c *LayoutCache) Key(pdf []byte) string {
	sum := sha256.Sum256(pdf)
	return c.Namespace + ":" + hex.EncodeToString(sum[:])
}

// GetOrDetect 命中时直接解码返回；未命中或缓存内容损坏时调用 detect 并回写
func (c *LayoutCache) GetOrDetect(ctx context.Context, pdf []byte, detect DetectFunc) (*layout.Document, bool, error) {
	if c == nil || c.Store == nil {
		doc, err := detect(ctx, pdf)
		return doc, false, err
	}

	key := c.Key(pdf)
	log := c.Log.With(logger.String("key", key))

	raw, ok, err := c.Store.Get(ctx, key)
	switch {
	case err != nil:
		log.Warn("cache read failed", logger.Err(err))
	case ok:
		doc, err := layout.Decode([]byte(raw))
		if err == nil {
			log.Info("layout cache hit")
			return doc, true, nil
		}
		log.Warn("invalid cached layout", logger.Err(err))
	}

	log.Info("layout cache miss, running detector")
	doc, err := detect(ctx, pdf)
	if err != nil {
		return nil, false, err
	}

	data, err := doc.Encode()
	if err != nil {
		log.Warn("layout not serializable, not cached", logger.Err(err))
		return doc, false, nil
	}
	if err := c.Store.SetEX(ctx, key, c.TTL, string(data)); err != nil {
		log.Warn("failed to cache layout", logger.Err(err))
	} else {
		log.Debug("layout cached", logger.Duration("ttl", c.TTL))
	}
	return doc, false, nil
}
