// Package stats turns booked orders into dashboard statistics. Every function
// here is pure: the same inputs always give the same outputs.
package stats

import (
	"time"

	"crm/internal/domain"
)

// Segment thresholds, in orders per driver over the counted period. Each
// segment has a weekly base and a three-day rate extrapolated to seven days;
// meeting either one qualifies.
const (
	coreWeekly       = 70.0
	coreThreeDay     = 20.0 / 3 * 7
	electronWeekly   = 40.0
	electronThreeDay = 10.0 / 3 * 7

	dateLayout = "2006-01-02"
)

// MaxRangeDays bounds the number of days a statistics query may span.
const MaxRangeDays = 366

// IsCore reports whether a driver with count orders is in the core segment.
func IsCore(count int) bool {
	n := float64(count)
	return n >= coreWeekly || n >= coreThreeDay
}

// IsElectron reports whether a driver with count orders is an electron.
// Core drivers also qualify; the two segments overlap.
func IsElectron(count int) bool {
	n := float64(count)
	return n >= electronWeekly || n >= electronThreeDay
}

// ComputeDailyStats returns one DailyStat per calendar day from end back to
// start, both inclusive, with days taken in loc.
//
// The change fields compare each day with the day processed just before it,
// which in this descending walk is the following calendar day. A day without
// orders reports zeros and is compared against the running previous counts,
// which it leaves unchanged.
func ComputeDailyStats(orders []domain.Order, start, end time.Time, loc *time.Location) []domain.DailyStat {
	if loc == nil {
		loc = time.UTC
	}
	first := startOfDay(start, loc)
	last := startOfDay(end, loc)
	if last.Before(first) {
		return []domain.DailyStat{}
	}

	byDay := make(map[string][]domain.Order)
	for _, o := range orders {
		day := o.BookedAt.In(loc).Format(dateLayout)
		byDay[day] = append(byDay[day], o)
	}

	result := make([]domain.DailyStat, 0, int(last.Sub(first).Hours()/24)+1)
	previousCore, previousElectrons := 0, 0

	for d := last; !d.Before(first); d = d.AddDate(0, 0, -1) {
		date := d.Format(dateLayout)
		dayOrders := byDay[date]

		if len(dayOrders) == 0 {
			result = append(result, domain.DailyStat{
				Date:            date,
				CoreChange:      -previousCore,
				ElectronsChange: -previousElectrons,
			})
			continue
		}

		counts, revenue := countByDriver(dayOrders)
		core, electrons := segment(counts)
		drivers := float64(len(counts))

		result = append(result, domain.DailyStat{
			Date:            date,
			TotalOrders:     len(dayOrders),
			TotalRevenue:    revenue,
			CoreDrivers:     core,
			CoreChange:      core - previousCore,
			Electrons:       electrons,
			ElectronsChange: electrons - previousElectrons,
			AverageRevenue:  revenue / drivers,
			AverageOrders:   float64(len(dayOrders)) / drivers,
		})

		previousCore, previousElectrons = core, electrons
	}
	return result
}

// ComputeSummary aggregates a whole period, segmenting drivers on their
// order count over the period.
func ComputeSummary(orders []domain.Order) domain.Summary {
	if len(orders) == 0 {
		return domain.Summary{}
	}
	counts, revenue := countByDriver(orders)
	core, electrons := segment(counts)
	return domain.Summary{
		TotalOrders:  len(orders),
		TotalRevenue: revenue,
		CoreDrivers:  core,
		Electrons:    electrons,
	}
}

func countByDriver(orders []domain.Order) (map[string]int, float64) {
	counts := make(map[string]int)
	revenue := 0.0
	for _, o := range orders {
		counts[o.DriverID]++
		revenue += o.Revenue()
	}
	return counts, revenue
}

func segment(counts map[string]int) (core, electrons int) {
	for _, n := range counts {
		if IsCore(n) {
			core++
		}
		if IsElectron(n) {
			electrons++
		}
	}
	return core, electrons
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayBounds returns [from, to) covering the calendar days start..end in loc.
func DayBounds(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	return startOfDay(start, loc), startOfDay(end, loc).AddDate(0, 0, 1)
}
