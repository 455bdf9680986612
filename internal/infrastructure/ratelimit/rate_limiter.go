package ratelimit

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/time/rate"

	"marketchat/pkg/logger"
)

const (
	ActionSendMessage = "send_message"
	ActionResolveChat = "resolve_chat"
	ActionUploadImage = "upload_image"
	ActionIssueToken  = "issue_token"
)

// Policy describes one action's token bucket.
type Policy struct {
	Every time.Duration
	Burst int
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user and action.
type RateLimiter struct {
	policies map[string]Policy
	fallback Policy
	idleTTL  time.Duration

	mu      sync.Mutex
	buckets map[string]*entry
	now     func() time.Time

	scheduler *gocron.Scheduler
}

// NewRateLimiter builds a limiter where sends are capped at perMinute with the
// given burst. Chat resolution gets its own, looser bucket.
func NewRateLimiter(sendPerMinute, sendBurst int) *RateLimiter {
	return &RateLimiter{
		policies: map[string]Policy{
			ActionSendMessage: {Every: time.Minute / time.Duration(sendPerMinute), Burst: sendBurst},
			ActionResolveChat: {Every: 2 * time.Second, Burst: 20},
			ActionUploadImage: {Every: 6 * time.Second, Burst: 10},
		},
		fallback: Policy{Every: 3 * time.Second, Burst: 20},
		idleTTL:  time.Hour,
		buckets:  make(map[string]*entry),
		now:      time.Now,
	}
}

// Allow consumes a token for userID/action. When the bucket is empty it
// reports how long until the next token.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	key := userID + ":" + action
	now := rl.now()

	rl.mu.Lock()
	e, ok := rl.buckets[key]
	if !ok {
		policy, found := rl.policies[action]
		if !found {
			policy = rl.fallback
		}
		e = &entry{limiter: rate.NewLimiter(rate.Every(policy.Every), policy.Burst)}
		rl.buckets[key] = e
	}
	e.lastSeen = now
	rl.mu.Unlock()

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup drops buckets that have been idle longer than the TTL.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, e := range rl.buckets {
		if now.Sub(e.lastSeen) > rl.idleTTL {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// StartCleanupRoutine schedules Cleanup every interval until Stop.
func (rl *RateLimiter) StartCleanupRoutine(interval time.Duration) error {
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(interval).Do(func() {
		if removed := rl.Cleanup(); removed > 0 {
			logger.Debug("Rate limiter cleanup removed %d idle buckets", removed)
		}
	})
	if err != nil {
		return err
	}

	scheduler.StartAsync()
	rl.scheduler = scheduler
	return nil
}

func (rl *RateLimiter) Stop() {
	if rl.scheduler != nil {
		rl.scheduler.Stop()
	}
}
