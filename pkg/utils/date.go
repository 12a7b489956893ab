package utils

import (
	"fmt"
	"sync"
	"time"

	"sailboat/pkg/common"
)

var (
	locMu    sync.RWMutex
	location = time.Local
)

// SetLocation sets the process-wide location used by TimeNow. An unknown zone
// falls back to time.Local.
func SetLocation(tz string) *time.Location {
	loc := time.Local
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	locMu.Lock()
	location = loc
	locMu.Unlock()
	return loc
}

func GetLocation() *time.Location {
	locMu.RLock()
	defer locMu.RUnlock()
	return location
}

func TimeNow() time.Time {
	return time.Now().In(GetLocation())
}

// FormatDateTime renders t as "2006-01-02 15:04:05".
func FormatDateTime(t time.Time) string {
	return t.Format(common.DATETIME_LAYOUT)
}

// FormatDuration renders d as hours:minutes:seconds without zero padding, e.g. "0:1:5".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int64(d / time.Second)
	minutes, second := seconds/60, seconds%60
	hour, minute := minutes/60, minutes%60
	return fmt.Sprintf("%d:%d:%d", hour, minute, second)
}

// HumanSize renders a byte count as "N byte", "N kb" or "N mb" with integer division.
func HumanSize(size int64) string {
	unit := "byte"
	if size > 1024 {
		unit = "kb"
		size = size / 1024
	}
	if size > 1024 {
		unit = "mb"
		size = size / 1024
	}
	return fmt.Sprintf("%d %s", size, unit)
}
