package history

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
)

// Entry is one recorded controller transition.
type Entry struct {
	ID             int64     `json:"id"`
	ControllerID   string    `json:"controller_id"`
	ControllerType string    `json:"controller_type"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	IsOn           bool      `json:"is_on"`
	CreatedAt      time.Time `json:"created_at"`
}

// Repository persists and queries controller transitions.
type Repository interface {
	RecordTransition(ctx context.Context, tr controller.Transition) error
	GetHistory(ctx context.Context, controllerID string, limit int) ([]Entry, error)
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
