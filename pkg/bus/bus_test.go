package bus

import (
	"context"
	"testing"
)

func TestMessageBus_PublishInboundDropsWhenBufferFull(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	for i := 0; i < busDepth; i++ {
		mb.PublishInbound(InboundMessage{Channel: "test", SenderID: "u", ChatID: "c", Content: "msg"})
	}

	mb.PublishInbound(InboundMessage{Channel: "test", SenderID: "u", ChatID: "c", Content: "overflow"})
	if mb.DroppedInbound() != 1 {
		t.Fatalf("expected dropped inbound count 1, got %d", mb.DroppedInbound())
	}
}

func TestMessageBus_PublishOutboundDropsWhenBufferFull(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	for i := 0; i < busDepth; i++ {
		mb.PublishOutbound(OutboundMessage{Channel: "test", ChatID: "c", Content: "msg"})
	}

	mb.PublishOutbound(OutboundMessage{Channel: "test", ChatID: "c", Content: "overflow"})
	if mb.DroppedOutbound() != 1 {
		t.Fatalf("expected dropped outbound count 1, got %d", mb.DroppedOutbound())
	}
}

func TestMessageBus_RoundTrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishInbound(InboundMessage{Channel: "discord", SenderID: "u1", ChatID: "c1", Content: "教我玩", SessionKey: "discord:c1"})
	in, ok := mb.ConsumeInbound(context.Background())
	if !ok || in.SessionKey != "discord:c1" || in.Content != "教我玩" {
		t.Fatalf("inbound = (%+v, %v)", in, ok)
	}

	mb.PublishOutbound(OutboundMessage{Channel: "discord", ChatID: "c1", Content: "好的！😊"})
	out, ok := mb.SubscribeOutbound(context.Background())
	if !ok || out.ChatID != "c1" {
		t.Fatalf("outbound = (%+v, %v)", out, ok)
	}
}

func TestMessageBus_ClosedChannelsReturnFalse(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	if _, ok := mb.ConsumeInbound(context.Background()); ok {
		t.Fatalf("expected closed inbound consume to return ok=false")
	}
	if _, ok := mb.SubscribeOutbound(context.Background()); ok {
		t.Fatalf("expected closed outbound subscribe to return ok=false")
	}
}
