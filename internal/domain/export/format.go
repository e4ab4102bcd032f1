package export

import (
	"strconv"
	"time"
)

func Amount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func OptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return Date(*t)
}

func Timestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func YesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func Count(n int) string {
	return strconv.Itoa(n)
}
