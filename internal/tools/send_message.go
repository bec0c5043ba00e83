package tools

import (
	"context"
	"fmt"

	"github.com/tokamak-network/ai-tokamak/internal/bus"
)

// OutboundPublisher publishes messages to delivery channels.
// Implemented by bus.Bus.
type OutboundPublisher interface {
	PublishOutbound(msg bus.OutboundMessage)
}

// RegisterSendMessage adds the send_message tool, which lets the agent
// post to a channel other than the one it is answering on.
func (r *Registry) RegisterSendMessage(pub OutboundPublisher) {
	r.Register(&Tool{
		Name: "send_message",
		Description: "Send a message to a specific channel and chat. " +
			"Use only when asked to notify or announce somewhere else; normal replies are delivered automatically.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"channel": map[string]any{
					"type":        "string",
					"description": "Delivery channel (e.g. discord, mqtt, web)",
				},
				"chat_id": map[string]any{
					"type":        "string",
					"description": "Target chat or channel ID on that channel",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Message text",
				},
			},
			"required": []string{"channel", "chat_id", "content"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			channel := stringArg(args, "channel")
			chatID := stringArg(args, "chat_id")
			content := stringArg(args, "content")
			if channel == "" || chatID == "" {
				return "", fmt.Errorf("channel and chat_id are required")
			}
			if content == "" {
				return "", fmt.Errorf("content is required")
			}

			msg := bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: content}
			if key := SessionKeyFromContext(ctx); key != "" {
				msg.Metadata = map[string]string{"origin_session": key}
			}
			pub.PublishOutbound(msg)

			return JSONResult(map[string]any{
				"success": true,
				"channel": channel,
				"chat_id": chatID,
			}), nil
		},
	})
}
