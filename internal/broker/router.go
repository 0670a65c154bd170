package broker

import (
	"context"

	"go.uber.org/zap"
)

// Message is one consumed broker record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
}

// TopicHandler handles messages from a specific topic.
type TopicHandler interface {
	Handle(ctx context.Context, msg *Message) error
}

// TopicHandlerFunc adapts a function to the TopicHandler interface.
type TopicHandlerFunc func(ctx context.Context, msg *Message) error

func (f TopicHandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Router dispatches messages to topic-specific handlers.
type Router struct {
	handlers map[string]TopicHandler
	fallback TopicHandler
}

// NewRouter creates a topic router with an optional fallback handler.
func NewRouter(fallback TopicHandler) *Router {
	return &Router{
		handlers: make(map[string]TopicHandler),
		fallback: fallback,
	}
}

// Register adds a handler for a specific topic.
func (r *Router) Register(topic string, handler TopicHandler) {
	r.handlers[topic] = handler
}

// Topics returns every registered topic.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	return topics
}

// Handle routes the message to the appropriate topic handler.
func (r *Router) Handle(ctx context.Context, msg *Message) error {
	handler, ok := r.handlers[msg.Topic]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, msg)
		}
		zap.L().Warn("no handler for topic, skipping message",
			zap.String("topic", msg.Topic),
			zap.ByteString("key", msg.Key),
		)
		return nil // commit to avoid redelivery
	}
	return handler.Handle(ctx, msg)
}
