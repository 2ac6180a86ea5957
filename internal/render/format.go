package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	DefaultDateLayout     = "Jan 2, 2006"
	DefaultDateTimeLayout = "Jan 2, 2006 15:04"
)

// inputLayouts are the shapes date and datetime inputs are stored in.
var inputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

type FormatConfig struct {
	Language       string
	Currency       string
	DateLayout     string
	DateTimeLayout string
	Location       *time.Location
}

// Formatter renders numbers, money and dates for one locale.
type Formatter struct {
	printer        *message.Printer
	unit           currency.Unit
	symbol         string
	dateLayout     string
	dateTimeLayout string
	loc            *time.Location
}

func NewFormatter(cfg FormatConfig) (*Formatter, error) {
	tag := language.English
	if cfg.Language != "" {
		parsed, err := language.Parse(cfg.Language)
		if err != nil {
			return nil, fmt.Errorf("render: language %q: %w", cfg.Language, err)
		}
		tag = parsed
	}
	unit := currency.USD
	if cfg.Currency != "" {
		parsed, err := currency.ParseISO(cfg.Currency)
		if err != nil {
			return nil, fmt.Errorf("render: currency %q: %w", cfg.Currency, err)
		}
		unit = parsed
	}
	f := &Formatter{
		printer:        message.NewPrinter(tag),
		unit:           unit,
		dateLayout:     cfg.DateLayout,
		dateTimeLayout: cfg.DateTimeLayout,
		loc:            cfg.Location,
	}
	if f.dateLayout == "" {
		f.dateLayout = DefaultDateLayout
	}
	if f.dateTimeLayout == "" {
		f.dateTimeLayout = DefaultDateTimeLayout
	}
	if f.loc == nil {
		f.loc = time.UTC
	}
	f.symbol = f.printer.Sprint(currency.Symbol(unit))
	return f, nil
}

// MustFormatter is NewFormatter for static configuration.
func MustFormatter(cfg FormatConfig) *Formatter {
	f, err := NewFormatter(cfg)
	if err != nil {
		panic(err)
	}
	return f
}

// Money formats amount with the currency symbol and two decimals.
func (f *Formatter) Money(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + f.symbol + f.printer.Sprint(number.Decimal(amount, number.Scale(2)))
}

// Number formats with locale grouping and no forced decimals.
func (f *Formatter) Number(n float64) string {
	return f.printer.Sprint(number.Decimal(n))
}

// Date formats a stored date. ok is false when the input is not a date this
// service knows how to read.
func (f *Formatter) Date(raw string) (string, bool) {
	t, ok := parseTime(raw)
	if !ok {
		return "", false
	}
	return t.Format(f.dateLayout), true
}

func (f *Formatter) DateTime(raw string) (string, bool) {
	t, ok := parseTime(raw)
	if !ok {
		return "", false
	}
	return t.In(f.loc).Format(f.dateTimeLayout), true
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toFloat(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return n, err == nil
}
