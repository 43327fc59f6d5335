// Package insights summarizes the future part of a forecast per calendar year.
package insights

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"revforecast/pkg/contracts/domain"
)

// Extract averages the daily estimates of every year after latestKnownYear
// and picks the next, highest and lowest years. Historical points are ignored.
// Ties on highest or lowest go to the earliest year.
func Extract(points []domain.ForecastPoint, latestKnownYear int) domain.ForecastInsights {
	type acc struct {
		sum   float64
		count int
	}
	byYear := make(map[int]*acc)
	for _, p := range points {
		y := p.Timestamp.UTC().Year()
		if y <= latestKnownYear {
			continue
		}
		a, ok := byYear[y]
		if !ok {
			a = &acc{}
			byYear[y] = a
		}
		a.sum += p.Estimate
		a.count++
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := domain.ForecastInsights{
		LatestKnownYear: latestKnownYear,
		Annual:          make([]domain.YearlyPrediction, 0, len(years)),
	}
	for _, y := range years {
		a := byYear[y]
		out.Annual = append(out.Annual, domain.YearlyPrediction{
			Year:     y,
			Estimate: math.RoundToEven(a.sum / float64(a.count)),
		})
	}

	for i := range out.Annual {
		yp := out.Annual[i]
		if yp.Year == latestKnownYear+1 {
			out.NextYear = &yp
		}
		if out.Highest == nil || yp.Estimate > out.Highest.Estimate {
			out.Highest = &yp
		}
		if out.Lowest == nil || yp.Estimate < out.Lowest.Estimate {
			out.Lowest = &yp
		}
	}

	return out
}

// FormatDollars renders the integer part of v as "$1,234,567"
func FormatDollars(v float64) string {
	n := int64(v)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String()
}

// Lines returns the human readable summary printed after a run
func Lines(in domain.ForecastInsights) []string {
	var lines []string
	if in.NextYear != nil {
		lines = append(lines, fmt.Sprintf("Predicted Revenue for %d: %s",
			in.NextYear.Year, FormatDollars(in.NextYear.Estimate)))
	}
	if in.Highest != nil {
		lines = append(lines, fmt.Sprintf("Highest Forecasted Revenue: %s in %d",
			FormatDollars(in.Highest.Estimate), in.Highest.Year))
	}
	if in.Lowest != nil {
		lines = append(lines, fmt.Sprintf("Lowest Forecasted Revenue: %s in %d",
			FormatDollars(in.Lowest.Estimate), in.Lowest.Year))
	}
	return lines
}
