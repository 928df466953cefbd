package notifications

import (
	"context"
	"time"
)

type SendRegistrationConfirmationInput struct {
	Email        string
	EventID      string
	EventTitle   string
	UserID       string
	RegisteredAt time.Time
}

type Notifier interface {
	SendRegistrationConfirmation(ctx context.Context, input SendRegistrationConfirmationInput) error
}
