package enrollment_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeus-health/account-processor/enrollment"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newReconciler() *enrollment.PremiumSpanReconciler {
	n := 0
	return &enrollment.PremiumSpanReconciler{
		NewID: func() enrollment.PremiumSpanID {
			n++
			return enrollment.PremiumSpanID(fmt.Sprintf("new-%d", n))
		},
	}
}

func rateItem(rt enrollment.RateType, d enrollment.Date, amount string) enrollment.RateItem {
	return enrollment.RateItem{Type: rt, EffectiveDate: d, Amount: decimal.RequireFromString(amount)}
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// BUILDING PREMIUM SPANS FROM SCRATCH
// =============================================================================

func TestBuildSpans_SingleItem_OneSpanCoveringWholeRange(t *testing.T) {
	r := newReconciler()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	txn := &enrollment.Transaction{
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "450.00"),
		},
	}

	premiums := r.BuildSpans(s, txn)

	require.Len(t, premiums, 1)
	assert.True(t, premiums[0].StartDate.Equal(s.StartDate))
	assert.True(t, premiums[0].EndDate.Equal(s.EndDate))
	assert.Equal(t, enrollment.PremiumActive, premiums[0].Status)
	assert.True(t, premiums[0].Rates.TotalPremium.Equal(amt("450.00")))
	assert.True(t, premiums[0].Changed)
}

func TestBuildSpans_MidYearRateChange_TwoContiguousSpans(t *testing.T) {
	// GIVEN: TOTPREMAMT 450 from Jan 1, 475 from Jul 1; APTC 300 from Jan 1
	// THEN: Two contiguous spans, the APTC amount carried forward into the
	//       second

	r := newReconciler()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	txn := &enrollment.Transaction{
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "450.00"),
			rateItem(enrollment.RateTotalPremium, date(2023, time.July, 1), "475.00"),
			rateItem(enrollment.RateAPTC, date(2023, time.January, 1), "300.00"),
		},
	}

	premiums := r.BuildSpans(s, txn)

	require.Len(t, premiums, 2)
	first, second := premiums[0], premiums[1]

	assert.True(t, first.StartDate.Equal(date(2023, time.January, 1)))
	assert.True(t, first.EndDate.Equal(date(2023, time.June, 30)))
	assert.True(t, first.Rates.TotalPremium.Equal(amt("450.00")))
	assert.True(t, first.Rates.APTC.Equal(amt("300.00")))

	assert.True(t, second.StartDate.Equal(date(2023, time.July, 1)))
	assert.True(t, second.EndDate.Equal(date(2023, time.December, 31)))
	assert.True(t, second.Rates.TotalPremium.Equal(amt("475.00")))
	assert.True(t, second.Rates.APTC.Equal(amt("300.00")), "APTC carries forward")

	assert.Equal(t, 1, enrollment.GapDays(first.EndDate, second.StartDate), "spans are contiguous")
}

func TestBuildSpans_ItemBeforeRange_ClampedToRangeStart(t *testing.T) {
	// A rate effective before the span began applies from the span start.
	r := newReconciler()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	txn := &enrollment.Transaction{
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2022, time.December, 1), "450.00"),
		},
	}

	premiums := r.BuildSpans(s, txn)

	require.Len(t, premiums, 1)
	assert.True(t, premiums[0].StartDate.Equal(date(2023, time.January, 1)))
}

func TestBuildSpans_ClampedItem_CompanionRatesAtSliceStart(t *testing.T) {
	// GIVEN: TOTPREMAMT dated before the span start (clamped to it) and an
	//        APTC effective on the span start itself
	// THEN: The APTC is in force on every day the slice covers, so the
	//       built premium carries it

	r := newReconciler()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	txn := &enrollment.Transaction{
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2022, time.December, 1), "450.00"),
			rateItem(enrollment.RateAPTC, date(2023, time.January, 1), "300.00"),
		},
	}

	premiums := r.BuildSpans(s, txn)

	require.Len(t, premiums, 1)
	assert.True(t, premiums[0].StartDate.Equal(date(2023, time.January, 1)))
	assert.True(t, premiums[0].Rates.TotalPremium.Equal(amt("450.00")))
	assert.True(t, premiums[0].Rates.APTC.Equal(amt("300.00")))
}

func TestBuildSpans_ItemAfterRange_Dropped(t *testing.T) {
	r := newReconciler()
	s := span("s1", date(2023, time.January, 1), date(2023, time.June, 30))
	txn := &enrollment.Transaction{
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "450.00"),
			rateItem(enrollment.RateTotalPremium, date(2023, time.September, 1), "475.00"),
		},
	}

	premiums := r.BuildSpans(s, txn)

	require.Len(t, premiums, 1)
	assert.True(t, premiums[0].EndDate.Equal(date(2023, time.June, 30)))
}

func TestBuildSpans_NoTotalPremiumItems_Nil(t *testing.T) {
	r := newReconciler()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	txn := &enrollment.Transaction{
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateAPTC, date(2023, time.January, 1), "300.00"),
		},
	}

	assert.Nil(t, r.BuildSpans(s, txn))
}

func TestBuildSpans_OtherPaySumsBothSources(t *testing.T) {
	r := newReconciler()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	txn := &enrollment.Transaction{
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "450.00"),
			rateItem(enrollment.RateOtherPay1, date(2023, time.January, 1), "20.00"),
			rateItem(enrollment.RateOtherPay2, date(2023, time.January, 1), "5.50"),
		},
	}

	premiums := r.BuildSpans(s, txn)

	require.Len(t, premiums, 1)
	assert.True(t, premiums[0].Rates.OtherPay.Equal(amt("25.50")))
}

// =============================================================================
// RECONCILIATION DECISIONS
// =============================================================================

func TestReconcile_IdenticalRates_NoChange(t *testing.T) {
	// GIVEN: Existing premium Jan-Dec at 450
	// WHEN: A change arrives with the same amounts over the same range
	// THEN: One decision, code 0 (no change)

	tl := newTimeline()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	tl.AddSpan(s)
	tl.AddPremium(premium("p1", "s1", date(2023, time.January, 1), date(2023, time.December, 31), "450.00"))

	txn := &enrollment.Transaction{
		Type: enrollment.TransactionChange,
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "450.00"),
		},
	}

	updates, err := newReconciler().Reconcile(tl, s, txn)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, enrollment.DecisionNoChange, updates[0].Kind)
	assert.Equal(t, 0, updates[0].Kind.Code())
}

func TestReconcile_DifferentRates_SameStart_Recreate(t *testing.T) {
	// GIVEN: Existing premium Jan-Dec at 450
	// WHEN: New amount 475 effective Jan 1
	// THEN: Code 1 (recreate); the existing span is replaced whole

	tl := newTimeline()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	tl.AddSpan(s)
	tl.AddPremium(premium("p1", "s1", date(2023, time.January, 1), date(2023, time.December, 31), "450.00"))

	txn := &enrollment.Transaction{
		Type: enrollment.TransactionChange,
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "475.00"),
		},
	}

	updates, err := newReconciler().Reconcile(tl, s, txn)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	u := updates[0]
	assert.Equal(t, enrollment.DecisionRecreate, u.Kind)
	assert.Equal(t, 1, u.Kind.Code())
	assert.True(t, u.NewEnd.IsZero(), "same start replaces whole, no head kept")
	require.NotNil(t, u.Replacement)
	assert.True(t, u.Replacement.StartDate.Equal(date(2023, time.January, 1)))
	assert.True(t, u.Replacement.EndDate.Equal(date(2023, time.December, 31)))
	assert.True(t, u.Replacement.Rates.TotalPremium.Equal(amt("475.00")))
}

func TestReconcile_MidSpanRateChange_RecreateKeepsHead(t *testing.T) {
	// GIVEN: Existing premium Jan-Dec at 450
	// WHEN: New amount 475 effective Jul 1
	// THEN: Recreate with the head kept: existing shortened to Jun 30,
	//       replacement covers Jul-Dec

	tl := newTimeline()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	tl.AddSpan(s)
	tl.AddPremium(premium("p1", "s1", date(2023, time.January, 1), date(2023, time.December, 31), "450.00"))

	txn := &enrollment.Transaction{
		Type: enrollment.TransactionChange,
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.July, 1), "475.00"),
		},
	}

	updates, err := newReconciler().Reconcile(tl, s, txn)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	u := updates[0]
	assert.Equal(t, enrollment.DecisionRecreate, u.Kind)
	assert.True(t, u.NewEnd.Equal(date(2023, time.June, 30)), "head kept through Jun 30")
	require.NotNil(t, u.Replacement)
	assert.True(t, u.Replacement.StartDate.Equal(date(2023, time.July, 1)))
	assert.True(t, u.Replacement.EndDate.Equal(date(2023, time.December, 31)))
}

func TestReconcile_ShortenThenAlreadyHandled(t *testing.T) {
	// GIVEN: Existing premium Jan-Dec at 450
	// WHEN: The transaction restates 450 from Jan 1 and again from Jul 1
	// THEN: First slice shortens (code 2); the second targets the same
	//       premium span and is downgraded to code 3

	tl := newTimeline()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	tl.AddSpan(s)
	tl.AddPremium(premium("p1", "s1", date(2023, time.January, 1), date(2023, time.December, 31), "450.00"))

	txn := &enrollment.Transaction{
		Type: enrollment.TransactionChange,
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "450.00"),
			rateItem(enrollment.RateTotalPremium, date(2023, time.July, 1), "450.00"),
		},
	}

	updates, err := newReconciler().Reconcile(tl, s, txn)
	require.NoError(t, err)

	require.Len(t, updates, 2)
	assert.Equal(t, enrollment.DecisionShorten, updates[0].Kind)
	assert.Equal(t, 2, updates[0].Kind.Code())
	assert.True(t, updates[0].NewEnd.Equal(date(2023, time.June, 30)))

	assert.Equal(t, enrollment.DecisionAlreadyHandled, updates[1].Kind)
	assert.Equal(t, 3, updates[1].Kind.Code())
}

func TestReconcile_DependentChange_ForcesRecreate(t *testing.T) {
	// A dependent being added makes the change financial even when every
	// amount is identical.
	tl := newTimeline()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	tl.AddSpan(s)
	tl.AddPremium(premium("p1", "s1", date(2023, time.January, 1), date(2023, time.December, 31), "450.00"))

	txn := &enrollment.Transaction{
		Type: enrollment.TransactionChange,
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "450.00"),
		},
		Members: []enrollment.MemberTransaction{
			{MemberCode: "02", Type: enrollment.TransactionAdd, EffectiveDate: date(2023, time.January, 1)},
		},
	}

	updates, err := newReconciler().Reconcile(tl, s, txn)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, enrollment.DecisionRecreate, updates[0].Kind)
}

func TestReconcile_SubscriberMemberChange_NotADependentChange(t *testing.T) {
	tl := newTimeline()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	tl.AddSpan(s)
	tl.AddPremium(premium("p1", "s1", date(2023, time.January, 1), date(2023, time.December, 31), "450.00"))

	txn := &enrollment.Transaction{
		Type: enrollment.TransactionChange,
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "450.00"),
		},
		Members: []enrollment.MemberTransaction{
			{MemberCode: "01", Type: enrollment.TransactionAdd, EffectiveDate: date(2023, time.January, 1), Subscriber: true},
		},
	}

	updates, err := newReconciler().Reconcile(tl, s, txn)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, enrollment.DecisionNoChange, updates[0].Kind)
}

func TestReconcile_CSRVariantDiffers_Recreate(t *testing.T) {
	tl := newTimeline()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	tl.AddSpan(s)
	p := premium("p1", "s1", date(2023, time.January, 1), date(2023, time.December, 31), "450.00")
	p.CSRVariant = "01"
	tl.AddPremium(p)

	item := rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "450.00")
	item.CSRVariant = "06"
	txn := &enrollment.Transaction{Type: enrollment.TransactionChange, RateItems: []enrollment.RateItem{item}}

	updates, err := newReconciler().Reconcile(tl, s, txn)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, enrollment.DecisionRecreate, updates[0].Kind)
	assert.Equal(t, "06", updates[0].Replacement.CSRVariant)
}

func TestReconcile_NoMatchingPremiumSpan_NotFound(t *testing.T) {
	// GIVEN: A span with no premium spans at all
	// WHEN: A financial change references it
	// THEN: Premium-span not found; the transaction aborts

	tl := newTimeline()
	s := span("s1", date(2023, time.January, 1), date(2023, time.December, 31))
	tl.AddSpan(s)

	txn := &enrollment.Transaction{
		Type: enrollment.TransactionChange,
		RateItems: []enrollment.RateItem{
			rateItem(enrollment.RateTotalPremium, date(2023, time.January, 1), "475.00"),
		},
	}

	_, err := newReconciler().Reconcile(tl, s, txn)

	require.Error(t, err)
	assert.True(t, errors.Is(err, enrollment.ErrPremiumSpanNotFound))
}
