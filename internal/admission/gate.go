package admission

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
)

// UsageCounter reports how many inbound chats an organization stored since a
// given instant. The tenant is taken from the context.
type UsageCounter interface {
	CountInboundChatsSince(ctx context.Context, since time.Time) (int64, error)
}

type gateEntry struct {
	allowed     bool
	used        int64
	refreshedAt time.Time
}

// LimitFunc selects which plan limit a gate enforces. Zero means unlimited.
type LimitFunc func(org model.OrgContext) int64

// InboundMessageLimit gates new inbound chats per billing month.
func InboundMessageLimit(org model.OrgContext) int64 {
	return org.Meta.Plan.InboundMessageLimit
}

// AutoReplyMessageLimit gates the auto-reply feature.
func AutoReplyMessageLimit(org model.OrgContext) int64 {
	return org.Meta.Plan.MessageLimit
}

// Gate decides whether an organization is under one of its monthly plan
// limits. Decisions are cached per organization and refreshed at a fixed
// interval, so a burst of traffic costs one count query per window rather
// than one per message.
type Gate struct {
	counter         UsageCounter
	limitOf         LimitFunc
	refreshInterval time.Duration
	mu              sync.Mutex
	entries         map[int64]gateEntry
	now             func() time.Time
}

// NewGate creates an admission gate backed by the given usage counter.
func NewGate(counter UsageCounter, limitOf LimitFunc, refreshInterval time.Duration) *Gate {
	if refreshInterval <= 0 {
		refreshInterval = time.Minute
	}
	return &Gate{
		counter:         counter,
		limitOf:         limitOf,
		refreshInterval: refreshInterval,
		entries:         make(map[int64]gateEntry),
		now:             time.Now,
	}
}

// Allow reports whether the organization is under its limit.
// A zero limit means unlimited. When the usage count cannot be refreshed the
// gate lets the message through; the limit is a billing guard, not a
// correctness one, and dropping traffic on a read failure would be worse.
func (g *Gate) Allow(ctx context.Context, org model.OrgContext) bool {
	limit := g.limitOf(org)
	if limit <= 0 {
		return true
	}

	now := g.now()

	g.mu.Lock()
	entry, ok := g.entries[org.ID]
	g.mu.Unlock()

	if ok && now.Sub(entry.refreshedAt) < g.refreshInterval {
		if !entry.allowed {
			observer.IncAdmissionDrop(org.ID)
		}
		return entry.allowed
	}

	monthStart := startOfMonth(org.Now())
	used, err := g.counter.CountInboundChatsSince(ctx, monthStart)
	if err != nil {
		logger.FromContext(ctx).Warn("Admission usage refresh failed, allowing message",
			zap.Int64("organization_id", org.ID),
			zap.Error(err))
		return true
	}

	allowed := used < limit
	g.mu.Lock()
	g.entries[org.ID] = gateEntry{allowed: allowed, used: used, refreshedAt: now}
	g.mu.Unlock()

	if !allowed {
		observer.IncAdmissionDrop(org.ID)
		logger.FromContext(ctx).Info("Plan limit reached, dropping message",
			zap.Int64("organization_id", org.ID),
			zap.Int64("used", used),
			zap.Int64("limit", limit))
	}
	return allowed
}

// Invalidate drops the cached decision for an organization. Called after the
// organization's plan changes so the next message re-reads the limit.
func (g *Gate) Invalidate(orgID int64) {
	g.mu.Lock()
	delete(g.entries, orgID)
	g.mu.Unlock()
}

// startOfMonth returns midnight on the first day of t's month, in t's zone.
func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
