/*
overlap.go - Resolves temporal overlaps between a new coverage period
and the existing timeline

PURPOSE:
  When an ADD arrives, any existing span in the same year/coverage-type
  partition that overlaps the new period must yield: the straddling span
  is shortened (or canceled when it starts the same day), and every other
  overlapping span is canceled outright. Resolution completes before the
  new span is created, because status determination for the new span
  consults the (possibly just-mutated) prior span.

AMBIGUITY:
  At most one existing span may straddle the new start date. More than
  one means the timeline is already in an inconsistent state; the
  transaction is rejected with AmbiguousOverlapError rather than picking
  a winner.

SEE ALSO:
  - engine.go: Calls Resolve before creating the new span
  - status.go: Consumes the mutated prior span's status
*/
package enrollment

// OverlapResolution records which existing records were mutated so the
// caller can persist them.
type OverlapResolution struct {
	Shortened       []*EnrollmentSpan
	Canceled        []*EnrollmentSpan
	TouchedPremiums []*PremiumSpan
}

// Touched reports whether the resolution mutated anything.
func (r *OverlapResolution) Touched() bool {
	return len(r.Shortened) > 0 || len(r.Canceled) > 0
}

// OverlapResolver truncates or cancels existing spans that conflict with
// a new coverage period. It mutates the timeline it is given; the engine
// hands it a clone.
type OverlapResolver struct{}

// Resolve applies the overlap algorithm for a new period
// [newStart, newEnd] in the given coverage-type partition.
//
// Candidate set: spans whose start-date year equals newStart's year,
// whose coverage type matches, whose status is not CANCELED, and whose
// interval overlaps [newStart, newEnd].
func (or *OverlapResolver) Resolve(tl *Timeline, newStart, newEnd Date, ct CoverageType) (*OverlapResolution, error) {
	res := &OverlapResolution{}

	var candidates []*EnrollmentSpan
	for _, s := range tl.SpansInPartition(newStart.Year(), ct) {
		if s.EndDate.After(newStart) && s.StartDate.Before(newEnd) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return res, nil
	}

	// Find the span that straddles the new start: start <= newStart < end,
	// or start == newStart.
	var straddling []*EnrollmentSpan
	for _, s := range candidates {
		if (s.StartDate.BeforeOrEqual(newStart) && newStart.Before(s.EndDate)) ||
			s.StartDate.Equal(newStart) {
			straddling = append(straddling, s)
		}
	}
	if len(straddling) > 1 {
		ids := make([]SpanID, len(straddling))
		for i, s := range straddling {
			ids[i] = s.ID
		}
		return nil, &AmbiguousOverlapError{AccountID: tl.AccountID, NewStart: newStart, SpanIDs: ids}
	}

	var straddler *EnrollmentSpan
	if len(straddling) == 1 {
		straddler = straddling[0]
		if straddler.StartDate.Before(newStart) {
			// Shorten to the day before the new period begins, trimming
			// premium spans past the new end date.
			termDate := newStart.AddDays(-1)
			straddler.EndDate = termDate
			res.Shortened = append(res.Shortened, straddler)
			res.TouchedPremiums = append(res.TouchedPremiums, trimPremiums(tl, straddler.ID, termDate)...)
		} else {
			// Starts the same day as the new period: superseded entirely.
			cancelSpan(straddler)
			res.Canceled = append(res.Canceled, straddler)
			res.TouchedPremiums = append(res.TouchedPremiums, cancelPremiums(tl, straddler.ID)...)
		}
	}

	// Every other overlapping span is fully superseded by the new period.
	for _, s := range candidates {
		if s == straddler {
			continue
		}
		cancelSpan(s)
		res.Canceled = append(res.Canceled, s)
		res.TouchedPremiums = append(res.TouchedPremiums, cancelPremiums(tl, s.ID)...)
	}

	return res, nil
}

// cancelSpan marks a span superseded: end pinned to start, status
// CANCELED.
func cancelSpan(s *EnrollmentSpan) {
	s.EndDate = s.StartDate
	s.Status = StatusCanceled
}

// trimPremiums shortens or cancels the active premium spans of a span
// that was end-dated to termDate: a premium straddling the term date is
// shortened to it, one starting after it is canceled. Returns the
// premiums it touched.
func trimPremiums(tl *Timeline, spanID SpanID, termDate Date) []*PremiumSpan {
	var touched []*PremiumSpan
	for _, p := range tl.ActivePremiumsOf(spanID) {
		if !p.EndDate.After(termDate) {
			continue
		}
		if p.StartDate.After(termDate) {
			p.Status = PremiumCanceled
		} else {
			p.EndDate = termDate
		}
		p.Changed = true
		touched = append(touched, p)
	}
	return touched
}

// cancelPremiums cancels every active premium span of a span. Returns the
// premiums it touched.
func cancelPremiums(tl *Timeline, spanID SpanID) []*PremiumSpan {
	var touched []*PremiumSpan
	for _, p := range tl.ActivePremiumsOf(spanID) {
		p.Status = PremiumCanceled
		p.Changed = true
		touched = append(touched, p)
	}
	return touched
}
