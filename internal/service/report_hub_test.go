package service

import "testing"

func TestReportHubFanout(t *testing.T) {
	h := NewReportHub()
	a, cancelA := h.Subscribe(1)
	b, cancelB := h.Subscribe(1)
	defer cancelB()

	h.Publish(CycleReport{RunID: "r1"})
	if got := (<-a).RunID; got != "r1" {
		t.Fatalf("a got %q", got)
	}
	if got := (<-b).RunID; got != "r1" {
		t.Fatalf("b got %q", got)
	}

	cancelA()
	cancelA()
	if _, open := <-a; open {
		t.Fatalf("cancelled channel should be closed")
	}
	if h.Subscribers() != 1 {
		t.Fatalf("subscribers=%d want=1", h.Subscribers())
	}
}

func TestReportHubDropsForSlowSubscribers(t *testing.T) {
	h := NewReportHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()
	h.Publish(CycleReport{RunID: "r1"})
	h.Publish(CycleReport{RunID: "r2"})
	if h.Dropped() != 1 {
		t.Fatalf("dropped=%d want=1", h.Dropped())
	}
	if got := (<-ch).RunID; got != "r1" {
		t.Fatalf("got %q want r1", got)
	}
}
