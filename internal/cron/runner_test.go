package cronrunner

import (
	"context"
	"testing"
	"time"
)

func TestAddRejectsBadSpec(t *testing.T) {
	r := New(nil, context.Background())
	if _, err := r.Add("cycle", "not a cron spec", func(context.Context) {}); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := r.Add("cycle", "0 0 8 * * *", func(context.Context) {}); err != nil {
		t.Fatalf("six-field spec: %v", err)
	}
	if r.Entries() != 1 {
		t.Fatalf("entries=%d want=1", r.Entries())
	}
}

func TestJobReceivesBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "base")
	r := New(nil, base)
	got := make(chan any, 1)
	if _, err := r.Add("tick", "* * * * * *", func(ctx context.Context) {
		select {
		case got <- ctx.Value(key{}):
		default:
		}
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	r.Start()
	defer r.Stop()

	select {
	case v := <-got:
		if v != "base" {
			t.Fatalf("ctx value=%v", v)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not run")
	}
}
