/*
reconcile.go - Premium span construction and financial-change diffing

PURPOSE:
  Slices a transaction's financial line-items into dated sub-periods and
  either builds premium spans from scratch (ADD, reinstated tails) or
  diffs the slices against a span's existing premium spans (financial
  CHANGE), emitting one update instruction per matched premium span.

SLICING:
  TOTPREMAMT line-items drive the slicing: each item opens a sub-period
  at its effective date (clamped to the span start); the sub-period ends
  the day before the next item's date, or at the span's end date for the
  last one. Gaps and overlaps between consecutive sub-periods cannot
  arise by construction - the predecessor's end is always computed from
  the successor's start.

UPDATE INSTRUCTIONS:
  The legacy decision codes are an implicit tagged union; here they are
  an explicit sum:
    DecisionNoChange       (code 0) leave the premium span as is
    DecisionRecreate       (code 1) cancel or shorten the existing span,
                                    create a replacement with new amounts
    DecisionShorten        (code 2) pull in the existing span's end date
    DecisionAlreadyHandled (code 3) an earlier line-item in the same
                                    transaction already resolved this span
  Code() preserves the 0/1/2/3 wire mapping for downstream consumers.

SEE ALSO:
  - classify.go: Decides whether a CHANGE needs this diff at all
  - engine.go: Applies the instructions to the timeline
*/
package enrollment

// =============================================================================
// UPDATE INSTRUCTIONS
// =============================================================================

// DecisionKind is the per-premium-span reconciliation outcome.
type DecisionKind int

const (
	DecisionNoChange DecisionKind = iota
	DecisionRecreate
	DecisionShorten
	DecisionAlreadyHandled
)

// Code returns the legacy integer decision code.
func (k DecisionKind) Code() int { return int(k) }

func (k DecisionKind) String() string {
	switch k {
	case DecisionNoChange:
		return "no_change"
	case DecisionRecreate:
		return "recreate"
	case DecisionShorten:
		return "shorten"
	case DecisionAlreadyHandled:
		return "already_handled"
	default:
		return "unknown"
	}
}

// PremiumUpdate is one reconciliation instruction for one existing
// premium span. Transient output; never persisted itself.
//
// Apply semantics:
//   - DecisionShorten: set Existing's end date to NewEnd.
//   - DecisionRecreate: when NewEnd is non-zero, shorten Existing to
//     NewEnd and keep it active (the replacement starts mid-span);
//     otherwise cancel Existing. Then create Replacement.
type PremiumUpdate struct {
	Existing    *PremiumSpan
	Kind        DecisionKind
	NewEnd      Date
	Replacement *PremiumSpan
}

// =============================================================================
// RECONCILER
// =============================================================================

// PremiumSpanReconciler builds and diffs premium spans. NewID mints
// identifiers for created spans.
type PremiumSpanReconciler struct {
	NewID func() PremiumSpanID
}

// rateSlice is one dated sub-period implied by the TOTPREMAMT items.
type rateSlice struct {
	Start      Date
	End        Date
	Rates      Rates
	CSRVariant string
}

// slices cuts [start, end] at each TOTPREMAMT effective date. Items dated
// before the range are clamped to its start; items after the range are
// dropped.
func (r *PremiumSpanReconciler) slices(txn *Transaction, start, end Date) []rateSlice {
	items := txn.TotalPremiumItems()
	if len(items) == 0 {
		return nil
	}

	var out []rateSlice
	for i, it := range items {
		sliceStart := it.EffectiveDate
		if sliceStart.Before(start) {
			sliceStart = start
		}
		if sliceStart.After(end) {
			continue
		}
		sliceEnd := end
		if i+1 < len(items) {
			sliceEnd = items[i+1].EffectiveDate.AddDays(-1)
			if sliceEnd.After(end) {
				sliceEnd = end
			}
		}
		if sliceEnd.Before(sliceStart) {
			continue
		}
		// A later item with the same effective date supersedes: shorten
		// the predecessor out of existence rather than emit an overlap.
		if n := len(out); n > 0 && !out[n-1].End.Before(sliceStart) {
			out[n-1].End = sliceStart.AddDays(-1)
			if out[n-1].End.Before(out[n-1].Start) {
				out = out[:n-1]
			}
		}
		// Rates are read at the clamped start, not the item date: a
		// companion item (APTC, CSR, other-pay) effective between an
		// early-dated TOTPREMAMT and the span start is in force on every
		// day the slice covers.
		out = append(out, rateSlice{
			Start:      sliceStart,
			End:        sliceEnd,
			Rates:      txn.RatesAt(sliceStart),
			CSRVariant: txn.CSRVariantAt(sliceStart),
		})
	}
	return out
}

// BuildSpans creates a span's premium spans from scratch out of the
// transaction's line-items. Used for ADD and for reinstated tails.
// Returns nil when the transaction carries no TOTPREMAMT items.
func (r *PremiumSpanReconciler) BuildSpans(span *EnrollmentSpan, txn *Transaction) []*PremiumSpan {
	return r.BuildSpansInRange(span.ID, span.StartDate, span.EndDate, txn)
}

// BuildSpansInRange creates premium spans covering [start, end].
func (r *PremiumSpanReconciler) BuildSpansInRange(spanID SpanID, start, end Date, txn *Transaction) []*PremiumSpan {
	var premiums []*PremiumSpan
	for _, sl := range r.slices(txn, start, end) {
		premiums = append(premiums, &PremiumSpan{
			ID:         r.NewID(),
			SpanID:     spanID,
			StartDate:  sl.Start,
			EndDate:    sl.End,
			Status:     PremiumActive,
			CSRVariant: sl.CSRVariant,
			Rates:      sl.Rates,
			Changed:    true,
		})
	}
	return premiums
}

// Reconcile diffs the transaction's line-items against the span's active
// premium spans and returns one instruction per affected slice.
//
// A slice matches the active premium span whose interval contains the
// slice's start date. No match is a not-found failure: the transaction
// references financial state the timeline doesn't have.
//
// When a premium span is targeted by more than one slice in the same
// pass, the later slice's decision is downgraded to AlreadyHandled so
// the span is not processed twice.
func (r *PremiumSpanReconciler) Reconcile(tl *Timeline, span *EnrollmentSpan, txn *Transaction) ([]PremiumUpdate, error) {
	active := tl.ActivePremiumsOf(span.ID)
	decided := make(map[PremiumSpanID]bool)

	var updates []PremiumUpdate
	for _, sl := range r.slices(txn, span.StartDate, span.EndDate) {
		match := premiumCovering(active, sl.Start)
		if match == nil {
			return nil, &NotFoundError{
				AccountID:     tl.AccountID,
				GroupPolicyID: span.GroupPolicyID,
				Date:          sl.Start,
				Kind:          "premium span",
			}
		}

		if decided[match.ID] {
			updates = append(updates, PremiumUpdate{Existing: match, Kind: DecisionAlreadyHandled})
			continue
		}

		update := r.decide(span, match, sl, txn)
		if update.Kind != DecisionNoChange {
			decided[match.ID] = true
		}
		updates = append(updates, update)
	}
	return updates, nil
}

// decide runs the single-slice decision table against its matched span.
func (r *PremiumSpanReconciler) decide(span *EnrollmentSpan, match *PremiumSpan, sl rateSlice, txn *Transaction) PremiumUpdate {
	fullChange := sl.CSRVariant != match.CSRVariant ||
		txn.HasDependentChange() ||
		!sl.Rates.Equal(match.Rates) ||
		sl.End.After(match.EndDate) // extension is a full change

	if fullChange {
		update := PremiumUpdate{
			Existing: match,
			Kind:     DecisionRecreate,
			Replacement: &PremiumSpan{
				ID:         r.NewID(),
				SpanID:     span.ID,
				StartDate:  sl.Start,
				EndDate:    sl.End,
				Status:     PremiumActive,
				CSRVariant: sl.CSRVariant,
				Rates:      sl.Rates,
				Changed:    true,
			},
		}
		if match.StartDate.Before(sl.Start) {
			// Replacement begins mid-span: keep the head of the existing
			// span and shorten it instead of canceling outright.
			update.NewEnd = sl.Start.AddDays(-1)
		}
		return update
	}

	if sl.End.Before(match.EndDate) {
		return PremiumUpdate{Existing: match, Kind: DecisionShorten, NewEnd: sl.End}
	}

	return PremiumUpdate{Existing: match, Kind: DecisionNoChange}
}

// premiumCovering returns the active premium span whose interval contains
// the date, or nil.
func premiumCovering(premiums []*PremiumSpan, d Date) *PremiumSpan {
	for _, p := range premiums {
		if p.Covers(d) {
			return p
		}
	}
	return nil
}
