package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseLeadingInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"20", 20},
		{"  15 days", 15},
		{"-3", -3},
		{"+7", 7},
		{"", 0},
		{"abc", 0},
		{"12.9", 12},
		{"99999999999999999999", math.MaxInt},
		{"-99999999999999999999", math.MinInt},
	}

	for _, tt := range tests {
		if got := ParseLeadingInt(tt.in); got != tt.want {
			t.Errorf("ParseLeadingInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"50%", 50},
		{"0%", 0},
		{"120%", 100},
		{"-10%", 0},
		{"75", 75},
		{"n/a", 0},
		{"99999999999999999999%", 100},
		{"%50", 50},
		{"%%50", 0},
	}

	for _, tt := range tests {
		if got := ParsePercent(tt.in); got != tt.want {
			t.Errorf("ParsePercent(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1000.50", "1000.5"},
		{"  250", "250"},
		{"12abc", "12"},
		{".5", "0.5"},
		{"", "0"},
		{"abc", "0"},
	}

	for _, tt := range tests {
		if got := ParseAmount(tt.in); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRemainingDays(t *testing.T) {
	for total := 0; total <= 30; total++ {
		for worked := 0; worked <= 40; worked++ {
			want := total - worked
			if want < 0 {
				want = 0
			}
			if got := RemainingDays(total, worked); got != want {
				t.Fatalf("RemainingDays(%d, %d) = %d, want %d", total, worked, got, want)
			}
		}
	}
}

func TestOverallPercent(t *testing.T) {
	if got := OverallPercent(nil); got != 0 {
		t.Errorf("expected 0 for empty list, got %d", got)
	}
	if got := OverallPercent([]int{50, 0}); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
	if got := OverallPercent([]int{50}); got != 50 {
		t.Errorf("expected 50, got %d", got)
	}
	if got := OverallPercent([]int{33, 34}); got != 34 {
		t.Errorf("expected 34 (33.5 rounds up), got %d", got)
	}
}

func TestDashboardMetrics(t *testing.T) {
	d := Dashboard{
		TotalDays:    20,
		WorkedDays:   5,
		BaseContract: decimal.RequireFromString("750"),
		AddContract:  decimal.RequireFromString("250"),
		WorkItems: []WorkItem{
			{Name: "Demolition", Percent: "50%"},
			{Name: "Framing", Percent: "0%"},
		},
	}

	m := d.Metrics()
	if m.RemainingDays != 15 {
		t.Errorf("expected remaining 15, got %d", m.RemainingDays)
	}
	if m.OverallPercent != 25 {
		t.Errorf("expected overall 25, got %d", m.OverallPercent)
	}
	if FormatAmount(m.TotalCost) != "1000.00" {
		t.Errorf("expected total 1000.00, got %s", FormatAmount(m.TotalCost))
	}
	if !m.BaseShare.Equal(decimal.NewFromInt(75)) {
		t.Errorf("expected base share 75, got %s", m.BaseShare)
	}
}

func TestComputeMetrics_NegativeAmountsCountAsZero(t *testing.T) {
	m := ComputeMetrics(0, 0, decimal.NewFromInt(-100), decimal.NewFromInt(40), nil)
	if !m.TotalCost.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected total 40, got %s", m.TotalCost)
	}
	if !m.BaseShare.IsZero() {
		t.Errorf("expected base share 0, got %s", m.BaseShare)
	}
}
