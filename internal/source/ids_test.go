package source

import "testing"

func TestNativeID(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://www.eventbrite.com/e/chennai-saas-founders-meetup-tickets-123456789", "123456789"},
		{"https://www.eventbrite.com/e/123456789012/", "123456789012"},
		{"https://www.eventbrite.com/o/some-organizer-12345678", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NativeID(tt.link, eventbriteIDPattern); got != tt.want {
			t.Fatalf("NativeID(%q)=%q want=%q", tt.link, got, tt.want)
		}
	}
	if got := NativeID("https://www.meetup.com/chennai-startups/events/301234567/", meetupIDPattern); got != "301234567" {
		t.Fatalf("meetup id=%q", got)
	}
	if got := NativeID("https://allevents.in/chennai/ai-summit/80001234567", trailingIDPattern); got != "80001234567" {
		t.Fatalf("allevents id=%q", got)
	}
}

func TestHashIDStable(t *testing.T) {
	a := HashID("India Machine Tools Expo", "2026-11-13")
	b := HashID("  india machine   tools expo ", "2026-11-13")
	if a == "" || a != b {
		t.Fatalf("hash not stable: %q vs %q", a, b)
	}
	if c := HashID("India Machine Tools Expo", "2026-11-14"); c == a {
		t.Fatalf("different start should change id")
	}
	if HashID("", " ") != "" {
		t.Fatalf("empty parts should give empty id")
	}
}

func TestExternalID(t *testing.T) {
	if got := ExternalID(SourceMeetup, " 42 "); got != "meetup_42" {
		t.Fatalf("ExternalID=%q", got)
	}
	if got := ExternalID(SourceMeetup, ""); got != "" {
		t.Fatalf("ExternalID of empty=%q", got)
	}
}
