package timeutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeParts splits a second value into hour/minute/second/millisecond parts.
func TimeParts(s float64) (int, int, int, int) {
	hours := int(math.Floor(s / 3600))
	hoursDiff := s - float64(hours)*3600
	minutes := int(math.Floor(hoursDiff / 60))
	minutesDiff := hoursDiff - float64(minutes)*60
	seconds := int(math.Floor(minutesDiff))
	ms := int(math.Round((minutesDiff - float64(seconds)) * 1000))

	return hours, minutes, seconds, ms
}

// ToTimeStamp renders seconds as an SRT timestamp (HH:MM:SS,mmm).
func ToTimeStamp(s float64) string {
	hours, minutes, seconds, ms := TimeParts(s)

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// ToTimeString renders seconds as HH:MM:SS.
func ToTimeString(s float64) string {
	hours, minutes, seconds, _ := TimeParts(s)

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// TimeStringToSeconds parses a HH:MM:SS string back into whole seconds.
func TimeStringToSeconds(timeString string) int {
	parts := strings.Split(timeString, ":")
	if len(parts) != 3 {
		return 0
	}

	hours, _ := strconv.Atoi(parts[0])
	minutes, _ := strconv.Atoi(parts[1])
	seconds, _ := strconv.Atoi(parts[2])

	return hours*3600 + minutes*60 + seconds
}

// Between clamps value into [min, max].
func Between(min, max, value float64) float64 {
	return math.Min(max, math.Max(value, min))
}

// Percentage returns floor(x/y*100), or 0 when either input is zero.
func Percentage(x, y int) int {
	if x == 0 || y == 0 {
		return 0
	}

	return int(math.Floor(float64(x) / float64(y) * 100))
}

// DateString formats a date as YYYY-MM-DD.
func DateString(date time.Time) string {
	return date.Format("2006-01-02")
}

// FormatSeconds renders a float second value the way it is passed to the
// toolchain: no exponent, no trailing zeros.
func FormatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
