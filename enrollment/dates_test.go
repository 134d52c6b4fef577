package enrollment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeus-health/account-processor/enrollment"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(y int, m time.Month, d int) enrollment.Date {
	return enrollment.NewDate(y, m, d)
}

// =============================================================================
// OVERLAP PREDICATE
// =============================================================================

func TestOverlaps_SharedDays(t *testing.T) {
	// GIVEN: [Jan 1, Jun 30] and [Jun 1, Dec 31]
	// THEN: They overlap (June is shared)
	assert.True(t, enrollment.Overlaps(
		date(2023, time.January, 1), date(2023, time.June, 30),
		date(2023, time.June, 1), date(2023, time.December, 31)))
}

func TestOverlaps_BackToBack_NoOverlap(t *testing.T) {
	// GIVEN: [Jan 1, Jan 31] and [Feb 1, Dec 31]
	// THEN: Adjacent ranges do not overlap
	assert.False(t, enrollment.Overlaps(
		date(2023, time.January, 1), date(2023, time.January, 31),
		date(2023, time.February, 1), date(2023, time.December, 31)))
}

func TestOverlaps_TouchingEndpoints(t *testing.T) {
	// GIVEN: [Jan 1, Jun 1] and [Jun 1, Dec 31]
	// THEN: Coinciding endpoints alone are not an overlap
	assert.False(t, enrollment.Overlaps(
		date(2023, time.January, 1), date(2023, time.June, 1),
		date(2023, time.June, 1), date(2023, time.December, 31)))
}

func TestOverlaps_Disjoint(t *testing.T) {
	assert.False(t, enrollment.Overlaps(
		date(2023, time.January, 1), date(2023, time.March, 31),
		date(2023, time.June, 1), date(2023, time.December, 31)))
}

// =============================================================================
// GAP ARITHMETIC
// =============================================================================

func TestGapDays_Adjacent(t *testing.T) {
	// Prior ends Jan 31, next starts Feb 1: one day apart, no gap in
	// coverage.
	assert.Equal(t, 1, enrollment.GapDays(date(2023, time.January, 31), date(2023, time.February, 1)))
}

func TestGapDays_Gap(t *testing.T) {
	// Prior ends Jan 31, next starts Feb 3: a gap in coverage.
	assert.Equal(t, 3, enrollment.GapDays(date(2023, time.January, 31), date(2023, time.February, 3)))
}

func TestGapDays_Overlap(t *testing.T) {
	assert.Equal(t, 0, enrollment.GapDays(date(2023, time.January, 31), date(2023, time.January, 31)))
	assert.Equal(t, -5, enrollment.GapDays(date(2023, time.January, 31), date(2023, time.January, 26)))
}

// =============================================================================
// PARSING AND RANGES
// =============================================================================

func TestParseDate(t *testing.T) {
	d, err := enrollment.ParseDate("2023-06-01")
	require.NoError(t, err)
	assert.True(t, d.Equal(date(2023, time.June, 1)))

	_, err = enrollment.ParseDate("06/01/2023")
	assert.Error(t, err)
}

func TestDateRange_Contains_InclusiveEndpoints(t *testing.T) {
	r := enrollment.DateRange{Start: date(2023, time.January, 1), End: date(2023, time.June, 30)}

	assert.True(t, r.Contains(date(2023, time.January, 1)))
	assert.True(t, r.Contains(date(2023, time.June, 30)))
	assert.True(t, r.Contains(date(2023, time.March, 15)))
	assert.False(t, r.Contains(date(2022, time.December, 31)))
	assert.False(t, r.Contains(date(2023, time.July, 1)))
}

func TestDate_AddDays_CrossesMonthBoundary(t *testing.T) {
	assert.True(t, date(2023, time.June, 1).AddDays(-1).Equal(date(2023, time.May, 31)))
	assert.True(t, date(2023, time.December, 31).AddDays(1).Equal(date(2024, time.January, 1)))
}
