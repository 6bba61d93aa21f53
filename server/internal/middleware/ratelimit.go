package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"pocket-chat/server/internal/metrics"
	"pocket-chat/server/pkg/response"
)

// 空闲超过该时长的限流器会被回收
const limiterIdleTTL = 10 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool 每个用户一个令牌桶
type limiterPool struct {
	mu        sync.Mutex
	limiters  map[int64]*userLimiter
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if burst <= 0 {
		burst = 1
	}
	return &limiterPool{
		limiters: make(map[int64]*userLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (p *limiterPool) allow(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) > limiterIdleTTL {
		for id, l := range p.limiters {
			if now.Sub(l.lastSeen) > limiterIdleTTL {
				delete(p.limiters, id)
			}
		}
		p.lastSweep = now
	}

	l, ok := p.limiters[userID]
	if !ok {
		l = &userLimiter{limiter: rate.NewLimiter(p.rps, p.burst)}
		p.limiters[userID] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

// RateLimitMiddleware 按用户限流，需放在 AuthMiddleware 之后
// rps <= 0 时不限流
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	pool := newLimiterPool(rps, burst)
	return func(c *gin.Context) {
		if !pool.allow(GetUserID(c)) {
			metrics.RateLimitHits.Inc()
			response.TooManyRequests(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
