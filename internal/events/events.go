package events

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types
const (
	EventUserRegistered        = "UserRegistered"
	EventUserVerified          = "UserVerified"
	EventProfileUpdated        = "ProfileUpdated"
	EventOnChainDataUpdated    = "OnChainDataUpdated"
	EventOffChainDataUpdated   = "OffChainDataUpdated"
	EventCollateralDeposited   = "CollateralDeposited"
	EventCollateralWithdrawn   = "CollateralWithdrawn"
	EventLoanRecorded          = "LoanRecorded"
	EventLoanRepaid            = "LoanRepaid"
	EventLoanDefaulted         = "LoanDefaulted"
	EventCreditScoreCalculated = "CreditScoreCalculated"
	EventRoleGranted           = "RoleGranted"
	EventRoleRevoked           = "RoleRevoked"
)

// DefaultStream is the channel ledger events are published on.
const DefaultStream = "credit:events"

type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	User      string         `json:"user,omitempty"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// New builds an event about user.
func New(eventType string, user common.Address, at time.Time, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		User:      user.Hex(),
		Payload:   payload,
		Timestamp: at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, handler func(Event)) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Emit publishes a committed event. Failures are logged and swallowed since
// the state change they describe already happened.
func Emit(ctx context.Context, p Publisher, log *logrus.Entry, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"event": event.Type,
			"user":  event.User,
		}).Warn("Failed to publish event")
	}
}
