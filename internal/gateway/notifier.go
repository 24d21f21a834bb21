package gateway

import (
	"context"
	"fmt"

	"github.com/nidhogg/noema/internal/telemetry"
	"go.uber.org/zap"
)

// Notifier forwards notable telemetry events to the chat platforms so
// connected users see what the creature is up to. Delivery is lossy by
// design: telemetry carries no guarantee and chat is decoration.
type Notifier struct {
	gw     *Gateway
	events <-chan *telemetry.Event
	logger *zap.Logger
}

// NewNotifier subscribes to the telemetry hub and returns a notifier.
// Call Run to start forwarding.
func NewNotifier(gw *Gateway, hub *telemetry.Hub, logger *zap.Logger) *Notifier {
	return &Notifier{
		gw:     gw,
		events: hub.Subscribe(),
		logger: logger,
	}
}

// Run forwards events until the context is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.events:
			if !ok {
				return
			}
			if msg := broadcastFor(ev); msg != nil {
				if err := n.gw.Broadcast(ctx, msg); err != nil {
					n.logger.Debug("telemetry broadcast failed", zap.Error(err))
				}
			}
		}
	}
}

// broadcastFor maps an event to a broadcast, or nil for events that are not
// worth announcing.
func broadcastFor(ev *telemetry.Event) *BroadcastMessage {
	switch ev.Type {
	case telemetry.EventLoopCrystallized:
		return &BroadcastMessage{
			Type:    BroadcastMilestone,
			Title:   "new behavior",
			Content: "I figured out a new trick!",
		}
	case telemetry.EventDiscoveryMade:
		return &BroadcastMessage{
			Type:    BroadcastDiscovery,
			Title:   "discovery",
			Content: fmt.Sprintf("I found something interesting: %s", ev.Detail),
		}
	case telemetry.EventCuriositySpike:
		return &BroadcastMessage{
			Type:    BroadcastMood,
			Title:   "curiosity",
			Content: "I suddenly want to explore everything!",
		}
	case telemetry.EventReflectionCompleted:
		return &BroadcastMessage{
			Type:    BroadcastMood,
			Title:   "reflection",
			Content: "I've been thinking about who I am.",
		}
	default:
		return nil
	}
}
