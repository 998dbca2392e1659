package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Service caches completion answers for repeated questions.
type Service interface {
	Get(ctx context.Context, question, model string) (string, bool)
	Set(ctx context.Context, question, model, answer string) error
	Clear(ctx context.Context) error
}

type entry struct {
	Answer    string
	CreatedAt time.Time
}

// Cache implements Service on an in-process TTL cache.
type Cache struct {
	enabled bool
	cache   *cache.Cache
	logger  *logrus.Logger
	maxSize int
}

// NewCache creates a new answer cache
func NewCache(cfg *config.CacheConfig, logger *logrus.Logger) Service {
	if !cfg.Enabled {
		return &Cache{enabled: false}
	}

	return &Cache{
		enabled: true,
		cache:   cache.New(cfg.TTL, cfg.TTL*2),
		logger:  logger,
		maxSize: cfg.MaxSize,
	}
}

// Get retrieves a cached answer
func (c *Cache) Get(ctx context.Context, question, model string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	if val, found := c.cache.Get(generateKey(question, model)); found {
		e := val.(*entry)
		c.logger.WithField("age", time.Since(e.CreatedAt)).Debug("Answer cache hit")
		return e.Answer, true
	}

	return "", false
}

// Set stores an answer in the cache
func (c *Cache) Set(ctx context.Context, question, model, answer string) error {
	if !c.enabled {
		return nil
	}

	if c.cache.ItemCount() >= c.maxSize {
		c.logger.Warn("Answer cache size limit reached, dropping expired entries")
		c.cache.DeleteExpired()
	}

	c.cache.SetDefault(generateKey(question, model), &entry{
		Answer:    answer,
		CreatedAt: time.Now(),
	})
	return nil
}

// Clear removes all cached answers
func (c *Cache) Clear(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	c.cache.Flush()
	return nil
}

func generateKey(question, model string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", model, question)))
	return hex.EncodeToString(hash[:])
}
