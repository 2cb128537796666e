package runtime

import (
	"chat-signal/contract"
	"chat-signal/domain"
	"chat-signal/domain/event"
	"chat-signal/observability"
	"log/slog"

	"github.com/samber/lo"
)

// PresenceBroadcaster announces registry membership changes to every other
// connected peer. Delivery is best-effort: a peer that cannot take the event
// is unregistered, which in turn announces that peer as offline.
type PresenceBroadcaster struct {
	log      *slog.Logger
	registry contract.IRegistry
	metrics  *observability.Metrics
}

var _ contract.IPresenceBroadcaster = (*PresenceBroadcaster)(nil)

func NewPresenceBroadcaster(log *slog.Logger, registry contract.IRegistry, metrics *observability.Metrics) *PresenceBroadcaster {
	return &PresenceBroadcaster{
		log:      log.With("component", "presence"),
		registry: registry,
		metrics:  metrics,
	}
}

func (p *PresenceBroadcaster) Broadcast(userID string, status domain.PresenceStatus) {
	evt := event.Presence{UserID: userID, Status: status}
	for _, h := range p.registry.Others(userID) {
		if err := h.Send(evt); err != nil {
			p.metrics.OutboundDropped.Inc()
			p.log.Debug("Presence delivery failed, unregistering peer",
				"conn_id", h.ID(), "error", err)
			h.Close()
			p.registry.Unregister(h)
			continue
		}
		p.metrics.PresenceMessages.Inc()
	}

	if status == domain.Online {
		p.sendSnapshot(userID)
	}
}

// sendSnapshot tells a user who just came online which peers are already reachable.
func (p *PresenceBroadcaster) sendSnapshot(userID string) {
	online := lo.Without(p.registry.Online(), userID)
	p.registry.Notify(userID, event.PresenceSnapshot{Online: online})
}
