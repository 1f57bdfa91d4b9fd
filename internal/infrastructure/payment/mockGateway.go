package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockGateway is an in-memory PaymentGateway for local development and
// tests. Intents start in requires_payment; tests and the dev loop flip
// them with SetStatus.
type MockGateway struct {
	mu      sync.RWMutex
	intents map[string]*Intent

	// CreateErr, when set, makes every CreateIntent call fail. Used to
	// exercise the orphaned-order path.
	CreateErr error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{intents: make(map[string]*Intent)}
}

func (g *MockGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.CreateErr != nil {
		return nil, g.CreateErr
	}

	id := "pi_" + uuid.NewString()
	intent := &Intent{
		ID:          id,
		ClientToken: "tok_" + uuid.NewString(),
		Status:      IntentRequiresPayment,
	}
	g.intents[id] = intent
	return intent, nil
}

func (g *MockGateway) CheckStatus(ctx context.Context, intentID string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	intent, ok := g.intents[intentID]
	if !ok {
		return "", fmt.Errorf("unknown intent %s", intentID)
	}
	return intent.Status, nil
}

// SetStatus forces an intent into the given status.
func (g *MockGateway) SetStatus(intentID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if intent, ok := g.intents[intentID]; ok {
		intent.Status = status
	}
}
