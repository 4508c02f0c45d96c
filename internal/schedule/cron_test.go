package schedule

import (
	"testing"
	"time"
)

func TestNextDue_Cron(t *testing.T) {
	// 25 августа 2026, 10:30 UTC
	from := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		expr string
		want time.Time
	}{
		{"daily at 9", "0 9 * * *", time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)},
		{"every 15 minutes", "*/15 * * * *", time.Date(2026, 8, 25, 10, 45, 0, 0, time.UTC)},
		{"first of month", "0 0 1 * *", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextDue(&Spec{CronExpr: tc.expr}, from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("NextDue(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestNextDue_Interval(t *testing.T) {
	from := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)

	got, err := NextDue(&Spec{IntervalSec: 90}, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := from.Add(90 * time.Second)
	if !got.Equal(want) {
		t.Errorf("NextDue = %v, want %v", got, want)
	}
}

func TestNextDue_Timezone(t *testing.T) {
	// 9:00 по Москве (UTC+3) — это 6:00 UTC
	from := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	got, err := NextDue(&Spec{CronExpr: "0 9 * * *", Timezone: "Europe/Moscow"}, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 8, 26, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextDue = %v, want %v", got, want)
	}
}

func TestNextDue_CronTakesPrecedence(t *testing.T) {
	from := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)

	got, err := NextDue(&Spec{CronExpr: "0 9 * * *", IntervalSec: 60}, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("interval should be ignored when cron is set: got %v", got)
	}
}

func TestNextDue_EmptySpec(t *testing.T) {
	if _, err := NextDue(&Spec{}, time.Now()); err == nil {
		t.Fatal("expected error for empty spec")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/5 * * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}

	for _, expr := range []string{"", "not a cron", "99 * * * *", "* * * *"} {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("expected error for %q", expr)
		}
	}
}
