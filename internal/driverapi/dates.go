package driverapi

import (
	"fmt"
	"time"
)

// FormatDate renders t as YYYY-M-D, without zero padding. The analytics
// backend only matches this exact shape.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month()), t.Day())
}
