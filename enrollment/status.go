/*
status.go - Lifecycle status derivation for enrollment spans

PURPOSE:
  Classifies a span's lifecycle status from its own attributes and its
  chronological predecessors. Stateless: "today" is a parameter, never
  the wall clock.

DECISION ORDER (first match wins):
  1. Delinquency/suspension - only when effectuated, flagged delinquent,
     and start <= end:
       no paid-through date          -> SUSPENDED
       today <= paid-through date    -> DELINQUENT
       otherwise, a gap-free prior span on the same plan that is itself
       DELINQUENT                    -> DELINQUENT, else SUSPENDED
  2. end < start                     -> CANCELED
  3. effectuated, end >= start       -> ENROLLED
  4. not effectuated, end >= start   -> PRE_MEMBER
  5. fallback                        -> NO_VALID_STATUS (inconsistent
     input; the caller logs it as a data-quality error)

SEE ALSO:
  - dates.go: GapDays defines "no coverage gap" (gap <= 1)
  - engine.go: Derives the effectuation date before calling in here
*/
package enrollment

// StatusDeterminer derives enrollment span statuses.
type StatusDeterminer struct{}

// DetermineStatus classifies one span given its chronological
// predecessors (non-canceled spans ending before this span's start,
// most recent first) and the current date.
func (sd *StatusDeterminer) DetermineStatus(span *EnrollmentSpan, priors []*EnrollmentSpan, today Date) SpanStatus {
	if st, ok := sd.delinquencyStatus(span, priors, today); ok {
		return st
	}

	if span.EndDate.Before(span.StartDate) {
		return StatusCanceled
	}

	if span.StartDate.BeforeOrEqual(span.EndDate) {
		if span.EffectuationDate != nil {
			return StatusEnrolled
		}
		return StatusPreMember
	}

	return StatusNoValidStatus
}

// delinquencyStatus evaluates the grace-period branch. Applies only when
// the span is effectuated, flagged delinquent, and its dates are ordered.
func (sd *StatusDeterminer) delinquencyStatus(span *EnrollmentSpan, priors []*EnrollmentSpan, today Date) (SpanStatus, bool) {
	if span.EffectuationDate == nil || !span.Delinquent || span.EndDate.Before(span.StartDate) {
		return "", false
	}

	if span.PaidThroughDate == nil {
		return StatusSuspended, true
	}
	if today.BeforeOrEqual(*span.PaidThroughDate) {
		return StatusDelinquent, true
	}

	// Grace period elapsed: still delinquent only when a gap-free
	// predecessor on the same plan is itself delinquent.
	for _, prior := range priors {
		if prior.PlanID == span.PlanID &&
			GapDays(prior.EndDate, span.StartDate) <= 1 &&
			prior.Status == StatusDelinquent {
			return StatusDelinquent, true
		}
	}
	return StatusSuspended, true
}

// DeriveEffectuation computes a new span's effectuation date before
// status is determined:
//   - a total-responsible-amount line-item of exactly zero effectuates
//     immediately (fully subsidized coverage);
//   - otherwise a gap-free ENROLLED predecessor on the same plan carries
//     effectuation forward;
//   - otherwise effectuation is pending (nil).
func (sd *StatusDeterminer) DeriveEffectuation(txn *Transaction, start Date, priors []*EnrollmentSpan, today Date) *Date {
	if txn.TotalResponsibleIsZero() {
		d := today
		return &d
	}
	for _, prior := range priors {
		if prior.PlanID == txn.PlanID &&
			GapDays(prior.EndDate, start) <= 1 &&
			prior.Status == StatusEnrolled {
			d := today
			return &d
		}
	}
	return nil
}
