package utils

import (
	"time"

	_ "time/tzdata"

	"github.com/go-universal/jalaali"
)

const (
	CalendarGregorian = "gregorian"
	CalendarJalali    = "jalali"
)

// TehranLoc returns the Tehran time zone location.
// Using the jalaali helper keeps behavior consistent even on minimal systems.
func TehranLoc() *time.Location {
	return jalaali.TehranTz()
}

// JalaliDateTime returns a string like "1404/10/09 - 16:40" (in Tehran time).
func JalaliDateTime(t time.Time) string {
	j := jalaali.New(t.In(TehranLoc()))
	return j.Format("2006/01/02 - 15:04")
}

// GregorianDateTime returns a string like "2025/12/30 - 13:10 UTC".
func GregorianDateTime(t time.Time) string {
	return t.UTC().Format("2006/01/02 - 15:04") + " UTC"
}

// FormatTimestamp renders t in the configured calendar.
func FormatTimestamp(t time.Time, calendar string) string {
	if calendar == CalendarJalali {
		return JalaliDateTime(t)
	}
	return GregorianDateTime(t)
}
