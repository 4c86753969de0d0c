package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/clubbot/core/config"
	"github.com/m3rciful/clubbot/core/telegram/middleware"
)

// DefaultMiddlewares returns the standard global middleware chain:
// panic recovery, per-user rate limiting and request logging.
func DefaultMiddlewares(cfg *coreconfig.Config) []Middleware {
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[kind] = struct{}{}
	}

	chain := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg.RateLimit.IntervalMS > 0 {
		chain = append(chain, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:  exclude,
			}),
		})
	}

	chain = append(chain, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	return chain
}
