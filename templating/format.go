package templating

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/message"
)

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateTime,
	"02/01/2006",
}

// FormatCurrency renders an amount with two decimals and the locale's
// grouping. Missing, zero and non-finite amounts all render as ZeroCurrency.
func (l Locale) FormatCurrency(v *float64) string {
	if v == nil || *v == 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return l.ZeroCurrency
	}
	p := message.NewPrinter(l.Language)
	return l.CurrencySymbol + " " + p.Sprintf("%.2f", *v)
}

// FormatDate renders a stored date. Blank input yields DateUndefined and
// anything that does not parse yields DateInvalid.
func (l Locale) FormatDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return l.DateUndefined
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		// date-only values carry no zone and must not shift a day
		if layout == time.DateOnly || layout == "02/01/2006" {
			return t.Format(l.DateLayout)
		}
		return t.In(l.location()).Format(l.DateLayout)
	}
	return l.DateInvalid
}

// FormatTime trims seconds off HH:MM:SS values and passes anything else
// through untouched.
func (l Locale) FormatTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return l.TimeUndefined
	}
	if t, err := time.Parse(time.TimeOnly, raw); err == nil {
		return t.Format("15:04")
	}
	return raw
}

func (l Locale) FormatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return l.DateUndefined
	}
	return t.In(l.location()).Format(l.DateTimeLayout)
}

func (l Locale) location() *time.Location {
	if l.Location == nil {
		return time.UTC
	}
	return l.Location
}
