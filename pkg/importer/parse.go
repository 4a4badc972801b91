package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// parseAmount accepts plain numbers as well as accounting formats such as
// "$1,234.50" and "(99.00)".
func parseAmount(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = v[1 : len(v)-1]
	}
	v = strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

var monthLayouts = []string{"2006-01", "01/2006", "1/2006", "2006/01", "Jan 2006", "January 2006", "Jan-06", "Jan-2006"}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", "01/02/06", "1/2/06", time.RFC3339, "2006-01-02 15:04:05"}

// parseMonth turns a period value into YYYY-MM.
func parseMonth(s string) (string, error) {
	v := strings.TrimSpace(s)
	if monthPattern.MatchString(v) {
		return v, nil
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01"), nil
		}
	}
	if t, err := parseDate(v); err == nil {
		return t.Format("2006-01"), nil
	}
	return "", fmt.Errorf("invalid month %q", s)
}

// parseDate accepts common date layouts and Excel serial dates.
func parseDate(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
		return xlsx.TimeFromExcelTime(f, false), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
