package domain

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// ParseLeadingInt reads the integer prefix of s after leading whitespace,
// ignoring anything that follows. Unparseable input yields 0; a prefix too
// large for int saturates at the int bounds.
func ParseLeadingInt(s string) int {
	m := leadingInt.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if errors.Is(err, strconv.ErrRange) {
		if m[0] == '-' {
			return math.MinInt
		}
		return math.MaxInt
	}
	if err != nil {
		return 0
	}
	return n
}

// ParsePercent parses user-entered percent text ("50%", " 75", "120") and
// clamps to 0..100. Only the first '%' is dropped before parsing.
func ParsePercent(s string) int {
	n := ParseLeadingInt(strings.Replace(s, "%", "", 1))
	return min(100, max(0, n))
}

// ParseAmount reads the decimal prefix of s. Unparseable input yields zero.
func ParseAmount(s string) decimal.Decimal {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// RemainingDays is max(0, total-worked).
func RemainingDays(total, worked int) int {
	return max(0, total-worked)
}

// OverallPercent is the rounded mean of the clamped percentages, 0 for an empty list.
func OverallPercent(percents []int) int {
	if len(percents) == 0 {
		return 0
	}
	sum := 0
	for _, p := range percents {
		sum += min(100, max(0, p))
	}
	return int(math.Round(float64(sum) / float64(len(percents))))
}

// Metrics are the derived dashboard displays.
type Metrics struct {
	RemainingDays  int             `json:"remainingDays"`
	OverallPercent int             `json:"overallPercent"`
	TotalCost      decimal.Decimal `json:"totalCost"`
	BaseShare      decimal.Decimal `json:"baseShare"`
}

// ComputeMetrics derives every dashboard display from primitive values.
// Negative amounts count as zero.
func ComputeMetrics(total, worked int, base, add decimal.Decimal, percents []int) Metrics {
	base = decimal.Max(base, decimal.Zero)
	add = decimal.Max(add, decimal.Zero)
	sum := base.Add(add)

	share := decimal.Zero
	if sum.IsPositive() {
		share = base.Div(sum).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return Metrics{
		RemainingDays:  RemainingDays(total, worked),
		OverallPercent: OverallPercent(percents),
		TotalCost:      sum,
		BaseShare:      share,
	}
}

// Metrics computes the derived displays of a dashboard record.
func (d Dashboard) Metrics() Metrics {
	percents := make([]int, len(d.WorkItems))
	for i, it := range d.WorkItems {
		percents[i] = it.Percent.Value()
	}
	return ComputeMetrics(d.TotalDays, d.WorkedDays, d.BaseContract, d.AddContract, percents)
}

// FormatAmount renders an amount with two decimals, as shown on the dashboard.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
