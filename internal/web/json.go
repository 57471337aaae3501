package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/climate-agent/internal/status"
	"github.com/sweeney/climate-agent/internal/store"
)

// LatestJSON is the /api/latest response.
type LatestJSON struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   string  `json:"timestamp"`
}

func formatLatest(l status.Latest) []byte {
	data, _ := json.Marshal(LatestJSON{
		Temperature: l.Temperature,
		Humidity:    l.Humidity,
		Timestamp:   l.Timestamp.UTC().Format(time.RFC3339),
	})
	return data
}

// HistoryJSON is the /api/history response: 24 hourly points, null where
// nothing was recorded.
type HistoryJSON struct {
	Date        string     `json:"date"`
	Hours       []int      `json:"hours"`
	Temperature []*float64 `json:"temperature"`
	Humidity    []*float64 `json:"humidity"`
}

func formatHistory(d store.Day) []byte {
	h := HistoryJSON{
		Date:        d.Date,
		Hours:       make([]int, 24),
		Temperature: d.Temperature[:],
		Humidity:    d.Humidity[:],
	}
	for i := range h.Hours {
		h.Hours[i] = i
	}
	data, _ := json.Marshal(h)
	return data
}
