package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"venue-service/internal/interfaces"
	"venue-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockProcessor is the stand-in payment processor used until a real provider
// is wired. Intents succeed at successRate after a short simulated delay.
type MockProcessor struct {
	mu          sync.Mutex
	intents     map[string]interfaces.IntentStatus
	successRate float64
	logger      *zap.Logger
}

// NewMockProcessor creates a mock processor. rate is the fraction of intents
// that settle as succeeded.
func NewMockProcessor(rate float64) *MockProcessor {
	return &MockProcessor{
		intents:     make(map[string]interfaces.IntentStatus),
		successRate: rate,
		logger:      util.GetLogger(),
	}
}

// CreateIntent opens a new intent in pending state.
func (p *MockProcessor) CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (string, error) {
	if amount < 0 {
		return "", fmt.Errorf("intent amount cannot be negative: %d", amount)
	}
	ref := fmt.Sprintf("pi_%s", uuid.New().String()[:12])

	p.mu.Lock()
	p.intents[ref] = interfaces.IntentPending
	p.mu.Unlock()

	p.logger.Info("mock payment intent created",
		zap.String("intent_ref", ref),
		zap.Int64("amount", amount),
		zap.String("order_id", metadata["order_id"]))
	return ref, nil
}

// GetIntentStatus settles a pending intent on first read, then answers
// consistently for the same ref.
func (p *MockProcessor) GetIntentStatus(ctx context.Context, intentRef string) (interfaces.IntentStatus, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(time.Duration(20+rand.Intn(80)) * time.Millisecond):
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.intents[intentRef]
	if !ok {
		return "", fmt.Errorf("unknown intent: %s", intentRef)
	}
	if status == interfaces.IntentPending {
		if rand.Float64() < p.successRate {
			status = interfaces.IntentSucceeded
		} else {
			status = interfaces.IntentFailed
		}
		p.intents[intentRef] = status
	}
	return status, nil
}
