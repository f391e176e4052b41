package weather

import (
	"time"

	"github.com/rafabd1/climatesense/internal/types"
)

// ForecastResponse is the subset of the /forecast payload used here.
type ForecastResponse struct {
	List []ForecastItem `json:"list"`
}

type ForecastItem struct {
	Dt      int64             `json:"dt"`
	Main    types.MainReading `json:"main"`
	Weather []types.Condition `json:"weather"`
	Pop     float64           `json:"pop"`
}

type dayAccumulator struct {
	summary    types.DailyForecast
	iconCounts map[string]int
	iconOrder  []string
}

// SummarizeForecast groups 3-hour slots by calendar date in loc. Days keep the
// order in which they first appear; each day takes the timestamp of its first
// slot, the extreme temperatures, the most frequent icon (earliest seen wins a
// tie) and the highest precipitation probability.
func SummarizeForecast(resp *ForecastResponse, loc *time.Location) *types.Forecast {
	out := &types.Forecast{Daily: []types.DailyForecast{}}
	if resp == nil {
		return out
	}
	if loc == nil {
		loc = time.Local
	}

	days := make(map[string]*dayAccumulator)
	var order []string
	for _, item := range resp.List {
		key := time.Unix(item.Dt, 0).In(loc).Format(time.DateOnly)
		icon := ""
		if len(item.Weather) > 0 {
			icon = item.Weather[0].Icon
		}

		acc, ok := days[key]
		if !ok {
			acc = &dayAccumulator{
				summary: types.DailyForecast{
					Dt:      item.Dt,
					TempMin: item.Main.TempMin,
					TempMax: item.Main.TempMax,
					Pop:     item.Pop,
				},
				iconCounts: make(map[string]int),
			}
			days[key] = acc
			order = append(order, key)
		}
		acc.summary.TempMin = min(acc.summary.TempMin, item.Main.TempMin)
		acc.summary.TempMax = max(acc.summary.TempMax, item.Main.TempMax)
		acc.summary.Pop = max(acc.summary.Pop, item.Pop)
		if _, seen := acc.iconCounts[icon]; !seen {
			acc.iconOrder = append(acc.iconOrder, icon)
		}
		acc.iconCounts[icon]++
	}

	for _, key := range order {
		acc := days[key]
		best := 0
		for _, icon := range acc.iconOrder {
			if n := acc.iconCounts[icon]; n > best {
				best = n
				acc.summary.Icon = icon
			}
		}
		out.Daily = append(out.Daily, acc.summary)
	}
	return out
}
