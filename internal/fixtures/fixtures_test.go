package fixtures

import (
	"testing"
	"time"
)

func TestParseRow(t *testing.T) {
	cases := []struct {
		in   string
		want Match
		ok   bool
	}{
		{
			in:   "16:00 - Flamengo x Palmeiras - Globo, Premiere",
			want: Match{Kickoff: "16:00", Teams: "Flamengo x Palmeiras", Channels: "Globo, Premiere"},
			ok:   true,
		},
		{
			in:   "21:30 - Real Madrid x Barcelona",
			want: Match{Kickoff: "21:30", Teams: "Real Madrid x Barcelona", Channels: "a confirmar"},
			ok:   true,
		},
		{in: "Rodada 28 do Brasileirão", ok: false},
		{in: "", ok: false},
		{in: "25:99 - A x B - TV", ok: false},
	}

	for _, tc := range cases {
		got, ok := parseRow(tc.in)
		if ok != tc.ok {
			t.Errorf("parseRow(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("parseRow(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestFilterByTimeKeepsLateJoinWindow(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, loc)

	matches := []Match{
		{Kickoff: "15:00", Teams: "too old"},
		{Kickoff: "16:30", Teams: "joinable"},
		{Kickoff: "21:00", Teams: "tonight"},
	}

	kept := filterByTime(matches, now)

	if len(kept) != 2 {
		t.Fatalf("kept %d matches, want 2: %+v", len(kept), kept)
	}
	if kept[0].Teams != "joinable" || kept[1].Teams != "tonight" {
		t.Errorf("kept = %+v", kept)
	}
}

func TestFilterByTimeBoundary(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, loc)

	// Exactly two hours old is no longer joinable.
	if kept := filterByTime([]Match{{Kickoff: "16:00"}}, now); len(kept) != 0 {
		t.Errorf("match exactly 2h old kept: %+v", kept)
	}
}
