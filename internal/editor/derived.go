package editor

import (
	"strconv"

	"github.com/designpm/designpm-core/internal/core/domain"
)

// Derived display names.
const (
	DisplayRemainingDays  = "remainingDays"
	DisplayOverallPercent = "overallPercent"
	DisplayTotalCost      = "totalCost"
	DisplayBaseShare      = "baseShare"
)

// Metrics derives the dashboard displays from the primitive fields currently
// on the surface. Nothing previously displayed is consulted.
func Metrics(s *Surface) domain.Metrics {
	field := func(name string) string {
		v, _ := s.Field(RoleDashboard, name)
		return v
	}

	items := s.Container(RoleWorkItems).children
	percents := make([]int, 0, len(items))
	for _, n := range items {
		percents = append(percents, domain.ParsePercent(n.Cells[cellPercent]))
	}

	return domain.ComputeMetrics(
		domain.ParseLeadingInt(field(FieldTotalDays)),
		domain.ParseLeadingInt(field(FieldWorkedDays)),
		domain.ParseAmount(field(FieldBaseContract)),
		domain.ParseAmount(field(FieldAddContract)),
		percents,
	)
}

// Recompute refreshes every derived display.
func Recompute(s *Surface) domain.Metrics {
	m := Metrics(s)
	s.displays[DisplayRemainingDays] = strconv.Itoa(m.RemainingDays)
	s.displays[DisplayOverallPercent] = strconv.Itoa(m.OverallPercent) + "%"
	s.displays[DisplayTotalCost] = domain.FormatAmount(m.TotalCost)
	s.displays[DisplayBaseShare] = m.BaseShare.StringFixed(2)
	return m
}
