package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestToTimeStamp(t *testing.T) {
	require.Equal(t, "00:00:01,000", ToTimeStamp(1))
	require.Equal(t, "00:02:16,612", ToTimeStamp(136.612))
	require.Equal(t, "01:00:00,000", ToTimeStamp(3600))
}

func TestToTimeString(t *testing.T) {
	require.Equal(t, "00:00:01", ToTimeString(1.4))
	require.Equal(t, "02:03:04", ToTimeString(2*3600+3*60+4))
}

func TestTimeStringToSeconds(t *testing.T) {
	require.Equal(t, 3661, TimeStringToSeconds("01:01:01"))
	require.Equal(t, 0, TimeStringToSeconds("nonsense"))
}

func TestBetween(t *testing.T) {
	require.Equal(t, 5.0, Between(0, 10, 5))
	require.Equal(t, 0.0, Between(0, 10, -1))
	require.Equal(t, 10.0, Between(0, 10, 11))
}

func TestPercentage(t *testing.T) {
	require.Equal(t, 75, Percentage(3, 4))
	require.Equal(t, 100, Percentage(4, 4))
	require.Equal(t, 0, Percentage(0, 4))
	require.Equal(t, 0, Percentage(3, 0))
	require.Equal(t, 33, Percentage(1, 3))
}

func TestDateString(t *testing.T) {
	date := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	require.Equal(t, "2024-03-07", DateString(date))
}

func TestFormatSeconds(t *testing.T) {
	require.Equal(t, "1.5", FormatSeconds(1.5))
	require.Equal(t, "2", FormatSeconds(2))
}
