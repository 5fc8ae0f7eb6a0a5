package middleware

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"taskboard-backend/pkg/utils"
)

const rateLimitPrefix = "taskboard:ratelimit"

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Rate     string // e.g. "100-M"
	Storage  string // memory | redis
	RedisURL string
}

// NewLimiterStore picks the backing store for the limiter. A redis store that
// cannot be built falls back to memory.
func NewLimiterStore(cfg RateLimitConfig, log logrus.FieldLogger) limiter.Store {
	if strings.EqualFold(cfg.Storage, "redis") {
		store, err := newRedisStore(cfg.RedisURL)
		if err == nil {
			return store
		}
		log.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
	}
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix})
}

func newRedisStore(url string) (limiter.Store, error) {
	if url == "" {
		return nil, errors.New("redis url is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	store, err := sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{Prefix: rateLimitPrefix})
	if err != nil {
		return nil, errors.Wrap(err, "create redis store")
	}
	return store, nil
}

// RateLimit limits requests per client IP, answering 429 in the usual envelope.
func RateLimit(cfg RateLimitConfig, store limiter.Store, log logrus.FieldLogger) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid rate %q", cfg.Rate)
	}

	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			log.WithField("path", r.URL.Path).Debug("rate limit reached")
			utils.WriteError(w, utils.CodeRateLimited, "Too many requests", "")
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			log.WithError(err).Error("rate limiter store failed")
			utils.WriteError(w, utils.CodeInternal, "Rate limiter unavailable", "")
		}),
	)
	return mw.Handler, nil
}
