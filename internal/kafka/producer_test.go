package kafka

import (
	"context"
	"testing"
)

func TestNilProducerIsNoop(t *testing.T) {
	var p *Producer
	if err := p.Publish(context.Background(), "run-1", map[string]int{"added": 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublishRejectsUnencodableValue(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "eventsync.cycles")
	defer p.Close()
	if err := p.Publish(context.Background(), "k", func() {}); err == nil {
		t.Fatalf("expected marshal error")
	}
}
