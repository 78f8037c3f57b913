package admission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	storagemock "gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage/mock"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
)

func init() {
	logger.Log = zap.NewNop()
}

func orgWithLimit(id, limit int64) model.OrgContext {
	return model.OrgContext{
		ID:       id,
		Timezone: "UTC",
		Meta: model.OrganizationMetadata{
			Plan: model.PlanSettings{InboundMessageLimit: limit},
		},
	}
}

func TestGateAllow_ZeroLimitIsUnlimited(t *testing.T) {
	counter := new(storagemock.OrganizationRepoMock)
	gate := NewGate(counter, InboundMessageLimit, time.Minute)

	assert.True(t, gate.Allow(context.Background(), orgWithLimit(1, 0)))
	counter.AssertNotCalled(t, "CountInboundChatsSince")
}

func TestGateAllow_UnderLimit(t *testing.T) {
	counter := new(storagemock.OrganizationRepoMock)
	counter.On("CountInboundChatsSince", mock.Anything, mock.Anything).Return(int64(4), nil).Once()
	gate := NewGate(counter, InboundMessageLimit, time.Minute)

	assert.True(t, gate.Allow(context.Background(), orgWithLimit(1, 5)))
	counter.AssertExpectations(t)
}

func TestGateAllow_AtLimitDrops(t *testing.T) {
	counter := new(storagemock.OrganizationRepoMock)
	counter.On("CountInboundChatsSince", mock.Anything, mock.Anything).Return(int64(5), nil).Once()
	gate := NewGate(counter, InboundMessageLimit, time.Minute)

	assert.False(t, gate.Allow(context.Background(), orgWithLimit(1, 5)))
	counter.AssertExpectations(t)
}

func TestGateAllow_DecisionCachedWithinWindow(t *testing.T) {
	counter := new(storagemock.OrganizationRepoMock)
	counter.On("CountInboundChatsSince", mock.Anything, mock.Anything).Return(int64(2), nil).Once()
	gate := NewGate(counter, InboundMessageLimit, time.Minute)

	org := orgWithLimit(1, 5)
	for i := 0; i < 10; i++ {
		assert.True(t, gate.Allow(context.Background(), org))
	}
	counter.AssertNumberOfCalls(t, "CountInboundChatsSince", 1)
}

func TestGateAllow_RefreshesAfterWindow(t *testing.T) {
	counter := new(storagemock.OrganizationRepoMock)
	counter.On("CountInboundChatsSince", mock.Anything, mock.Anything).Return(int64(2), nil).Once()
	counter.On("CountInboundChatsSince", mock.Anything, mock.Anything).Return(int64(9), nil).Once()

	gate := NewGate(counter, InboundMessageLimit, time.Minute)
	current := time.Now()
	gate.now = func() time.Time { return current }

	org := orgWithLimit(1, 5)
	assert.True(t, gate.Allow(context.Background(), org))

	current = current.Add(2 * time.Minute)
	assert.False(t, gate.Allow(context.Background(), org))
	counter.AssertExpectations(t)
}

func TestGateAllow_FailsOpenOnCounterError(t *testing.T) {
	counter := new(storagemock.OrganizationRepoMock)
	counter.On("CountInboundChatsSince", mock.Anything, mock.Anything).Return(int64(0), fmt.Errorf("connection refused"))
	gate := NewGate(counter, InboundMessageLimit, time.Minute)

	assert.True(t, gate.Allow(context.Background(), orgWithLimit(1, 5)))
}

func TestGateInvalidate_ForcesReRead(t *testing.T) {
	counter := new(storagemock.OrganizationRepoMock)
	counter.On("CountInboundChatsSince", mock.Anything, mock.Anything).Return(int64(9), nil).Once()
	counter.On("CountInboundChatsSince", mock.Anything, mock.Anything).Return(int64(1), nil).Once()
	gate := NewGate(counter, InboundMessageLimit, time.Minute)

	org := orgWithLimit(7, 5)
	assert.False(t, gate.Allow(context.Background(), org))

	gate.Invalidate(org.ID)
	assert.True(t, gate.Allow(context.Background(), org))
	counter.AssertExpectations(t)
}

func TestGate_PerOrganizationEntries(t *testing.T) {
	counter := new(storagemock.OrganizationRepoMock)
	counter.On("CountInboundChatsSince", mock.Anything, mock.Anything).Return(int64(9), nil)
	gate := NewGate(counter, InboundMessageLimit, time.Minute)

	assert.False(t, gate.Allow(context.Background(), orgWithLimit(1, 5)))
	assert.True(t, gate.Allow(context.Background(), orgWithLimit(2, 20)))
	counter.AssertNumberOfCalls(t, "CountInboundChatsSince", 2)
}

func TestLimitSelectors(t *testing.T) {
	org := model.OrgContext{Meta: model.OrganizationMetadata{
		Plan: model.PlanSettings{InboundMessageLimit: 100, MessageLimit: 50},
	}}

	assert.Equal(t, int64(100), InboundMessageLimit(org))
	assert.Equal(t, int64(50), AutoReplyMessageLimit(org))
}
