package gateway

import (
	"context"
	"time"
)

// Adapter defines the interface for chat platform adapters.
type Adapter interface {
	Platform() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg *OutboundMessage) error
	OnMessage(handler MessageHandler)
	Broadcast(ctx context.Context, msg *BroadcastMessage) error
	Close() error
}

// MessageHandler processes inbound messages from any platform.
type MessageHandler func(msg *InboundMessage)

// InboundMessage is a normalized message from any platform.
type InboundMessage struct {
	Platform  string    `json:"platform"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ReplyTo   string    `json:"reply_to,omitempty"`
}

// OutboundMessage is a message sent to a specific platform channel.
type OutboundMessage struct {
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

// BroadcastType categorizes broadcast messages.
type BroadcastType string

const (
	BroadcastMilestone BroadcastType = "milestone"
	BroadcastDiscovery BroadcastType = "discovery"
	BroadcastMood      BroadcastType = "mood"
)

// BroadcastMessage is sent to every connected platform simultaneously.
type BroadcastMessage struct {
	Type    BroadcastType `json:"type"`
	Title   string        `json:"title"`
	Content string        `json:"content"`
}
