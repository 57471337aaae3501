package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sweeney/climate-agent/internal/logger"
)

// DateLayout is the format of history dates, e.g. 2026-03-01.
const DateLayout = "2006-01-02"

// DefaultHistoryDays is how many days of hourly readings are kept.
const DefaultHistoryDays = 31

const historyPrefix = "history/"

func historyKey(date string) string {
	return historyPrefix + date
}

// hourRecord accumulates the readings of one hour.
type hourRecord struct {
	TempSum float64 `json:"t_sum"`
	HumSum  float64 `json:"h_sum"`
	N       int     `json:"n"`
}

type dayRecord struct {
	Hours [24]hourRecord `json:"hours"`
}

// Day holds the hourly means of one date. Hours with no reading are nil.
type Day struct {
	Date        string
	Temperature [24]*float64
	Humidity    [24]*float64
}

// History keeps hourly temperature and humidity means, one blob per day.
type History struct {
	blobs   BlobStore
	log     *logger.Logger
	timeout time.Duration
	days    int
}

// NewHistory returns a History over blobs. Non-positive arguments select
// DefaultTimeout and DefaultHistoryDays.
func NewHistory(blobs BlobStore, log *logger.Logger, timeout time.Duration, days int) *History {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if days <= 0 {
		days = DefaultHistoryDays
	}
	return &History{
		blobs:   blobs,
		log:     log.Component("history"),
		timeout: timeout,
		days:    days,
	}
}

// Record adds one reading to the hour of at, in at's location. The first
// reading of a day also drops the day that left the retention window.
func (h *History) Record(ctx context.Context, at time.Time, temperature, humidity float64) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	date := at.Format(DateLayout)
	rec, err := h.read(ctx, date)
	switch {
	case errors.Is(err, ErrNotFound):
		expired := at.AddDate(0, 0, -h.days).Format(DateLayout)
		if derr := h.blobs.DeleteBlob(ctx, historyKey(expired)); derr != nil {
			h.log.Warnw("expired history not deleted", "date", expired, "err", derr)
		}
	case err != nil:
		return err
	}

	hour := &rec.Hours[at.Hour()]
	hour.TempSum += temperature
	hour.HumSum += humidity
	hour.N++

	data, err := json.Marshal(rec)
	if err != nil {
		return &Error{Op: "write", Key: historyKey(date), Err: err}
	}
	if err := h.blobs.WriteBlob(ctx, historyKey(date), data); err != nil {
		var se *Error
		if errors.As(err, &se) {
			return se
		}
		return &Error{Op: "write", Key: historyKey(date), Err: err}
	}
	return nil
}

// Day returns the hourly means recorded for date (DateLayout). A date with
// no readings yields a Day with every hour nil.
func (h *History) Day(ctx context.Context, date string) (Day, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return Day{}, fmt.Errorf("history date %q: %w", date, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	day := Day{Date: date}
	rec, err := h.read(ctx, date)
	if errors.Is(err, ErrNotFound) {
		return day, nil
	}
	if err != nil {
		return Day{}, err
	}

	for i, hr := range rec.Hours {
		if hr.N == 0 {
			continue
		}
		t := round1(hr.TempSum / float64(hr.N))
		u := round1(hr.HumSum / float64(hr.N))
		day.Temperature[i] = &t
		day.Humidity[i] = &u
	}
	return day, nil
}

func (h *History) read(ctx context.Context, date string) (dayRecord, error) {
	var rec dayRecord
	data, err := h.blobs.ReadBlob(ctx, historyKey(date))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		h.log.Warnw("corrupt history record, starting over", "date", date, "err", err)
		return dayRecord{}, nil
	}
	return rec, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
