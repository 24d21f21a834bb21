package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/noema/internal/mind"
	"go.uber.org/zap"
)

// handleTimeout bounds how long one chat message may occupy the pipeline.
const handleTimeout = 10 * time.Second

// Responder wires inbound chat messages into the mind as speech events and
// replies with what the creature made of them.
type Responder struct {
	gw     *Gateway
	mind   *mind.Mind
	logger *zap.Logger
}

// NewResponder creates a responder and installs it as the gateway handler.
func NewResponder(gw *Gateway, m *mind.Mind, logger *zap.Logger) *Responder {
	r := &Responder{gw: gw, mind: m, logger: logger}
	gw.SetHandler(r.handle)
	return r
}

// handle processes one inbound message. Adapters call this from their event
// loops, so the pipeline work happens on a separate goroutine.
func (r *Responder) handle(msg *InboundMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()

		// Speech arrives as plain text; the encoder tokenizes it.
		result, err := r.mind.SubmitEvent(ctx, msg.UserID, "speak "+msg.Content)
		if err != nil {
			r.logger.Warn("speech event failed",
				zap.String("platform", msg.Platform), zap.Error(err))
			return
		}

		out := &OutboundMessage{
			Platform:  msg.Platform,
			ChannelID: msg.ChannelID,
			Content:   phrase(result),
			ReplyTo:   msg.ReplyTo,
		}
		if err := r.gw.Send(ctx, out); err != nil {
			r.logger.Warn("reply send failed",
				zap.String("platform", msg.Platform), zap.Error(err))
		}
	}()
}

// phrase turns an event result into a short creature reply.
func phrase(result *mind.EventResult) string {
	switch {
	case result.Response != nil:
		return fmt.Sprintf("*%s* — I know what to do with this!",
			strings.Join(result.Response.Features, ", "))
	case result.SingleShot:
		return "oh! I only needed to see that once."
	case result.Learned:
		return "that's new to me. I'll remember it."
	default:
		return fmt.Sprintf("mm, this feels familiar (%.0f%%).", result.Resonance*100)
	}
}
