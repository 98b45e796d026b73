package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm/internal/service"
)

func TestParseDateRange(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 10, 15, 30, 0, 0, time.UTC)
	date := func(d int) time.Time { return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC) }

	testCases := []struct {
		name      string
		start     string
		end       string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   error
	}{
		{name: "both given", start: "2024-03-01", end: "2024-03-05", wantStart: date(1), wantEnd: date(5)},
		{name: "neither given", wantStart: date(4), wantEnd: date(10)},
		{name: "start only", start: "2024-03-04", wantStart: date(4), wantEnd: date(4)},
		{name: "end only", end: "2024-03-09", wantStart: date(3), wantEnd: date(9)},
		{name: "same day", start: "2024-03-04", end: "2024-03-04", wantStart: date(4), wantEnd: date(4)},
		{name: "inverted", start: "2024-03-05", end: "2024-03-01", wantErr: service.ErrInvalidDateRange},
		{name: "bad start", start: "03/01/2024", end: "2024-03-05", wantErr: service.ErrInvalidDate},
		{name: "bad end", start: "2024-03-01", end: "tomorrow", wantErr: service.ErrInvalidDate},
		{name: "too long", start: "2023-01-01", end: "2024-03-01", wantErr: service.ErrDateRangeTooLong},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r, err := service.ParseDateRange(tc.start, tc.end, now, time.UTC)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStart, r.Start)
			assert.Equal(t, tc.wantEnd, r.End)
		})
	}
}

func TestParseDateRange_UsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*3600)
	// 22:30 UTC is already the next day three hours east.
	now := time.Date(2024, time.March, 10, 22, 30, 0, 0, time.UTC)

	r, err := service.ParseDateRange("", "", now, loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", r.EndLabel())
	assert.Equal(t, "2024-03-05", r.StartLabel())
	assert.Equal(t, 7, r.Days())
}

func TestDateRange_MaxLengthAccepted(t *testing.T) {
	t.Parallel()

	r, err := service.ParseDateRange("2024-01-01", "2024-12-31", time.Now(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 366, r.Days())
}
