package services

import (
	"go.uber.org/zap"

	"github.com/taskstream/backend/api/transport"
	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/usecase"
)

// Broadcaster is the slice of the connection registry the dispatcher needs.
type Broadcaster interface {
	Broadcast(userID string, frame []byte) int
}

// Dispatcher bridges the event log and the connection registry: every
// committed event is serialized once and fanned out to the owning user's live
// connections. Delivery is best effort; missed events are recovered by the
// client through the event log query, never replayed from here.
type Dispatcher struct {
	registry Broadcaster
	logger   *zap.Logger
}

func NewDispatcher(registry Broadcaster, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

func (d *Dispatcher) Dispatch(event *domain.TaskEvent) {
	if event == nil {
		return
	}
	frame, err := transport.EncodeEvent(event)
	if err != nil {
		d.logger.Error("failed to encode event frame",
			zap.Int64("event_id", event.ID), zap.Error(err))
		return
	}

	attempts := d.registry.Broadcast(event.UserID, frame)
	d.logger.Debug("event dispatched",
		zap.String("type", string(event.Type)),
		zap.Int64("event_id", event.ID),
		zap.Int("deliveries", attempts))
}

var _ usecase.EventSink = (*Dispatcher)(nil)
