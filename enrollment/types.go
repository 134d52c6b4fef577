/*
Package enrollment implements the enrollment timeline and premium
reconciliation engine.

PURPOSE:
  Maintains, per account, a consistent non-overlapping timeline of coverage
  periods (enrollment spans), each carrying nested financial sub-periods
  (premium spans). The engine resolves temporal overlaps between incoming
  and existing coverage, derives span lifecycle status from effectuation,
  delinquency and gap-in-coverage rules, and reconciles incoming financial
  line-items against existing premium spans.

KEY CONCEPTS IN THIS FILE (types.go):
  - EnrollmentSpan: A contiguous coverage period for one account
  - PremiumSpan: A financial sub-period with stable rate amounts
  - Rates: The five monetary fields, on decimal.Decimal
  - Timeline: The arena of all spans for one account, keyed by ID

DESIGN PRINCIPLES:
  1. Arena-of-records: Spans and premium spans live in flat maps with
     parent-ID references. No back-pointers, no object cycles.
  2. Precision: decimal.Decimal for every monetary field; amount
     comparison is numeric, never string-based.
  3. Purity: Nothing in this package performs I/O or reads the wall
     clock. "Today" is always passed in.
  4. Instructions, not side effects: The engine emits mutations for the
     caller to persist; spans are end-dated or canceled, never deleted.

SEE ALSO:
  - transaction.go: Inbound transaction records and rate line-items
  - overlap.go, status.go, reconcile.go, classify.go: The components
  - engine.go: Orchestration per transaction type
*/
package enrollment

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type SpanID string
type PremiumSpanID string

// =============================================================================
// STATUSES
// =============================================================================

// SpanStatus is the lifecycle status of an enrollment span.
type SpanStatus string

const (
	StatusPreMember     SpanStatus = "PRE_MEMBER"
	StatusEnrolled      SpanStatus = "ENROLLED"
	StatusCanceled      SpanStatus = "CANCELED"
	StatusDelinquent    SpanStatus = "DELINQUENT"
	StatusSuspended     SpanStatus = "SUSPENDED"
	StatusNoValidStatus SpanStatus = "NO_VALID_STATUS"
)

// PremiumStatus is the lifecycle status of a premium span.
type PremiumStatus string

const (
	PremiumActive   PremiumStatus = "ACTIVE"
	PremiumCanceled PremiumStatus = "CANCELED"
)

// CoverageType distinguishes family-level from dependent-only coverage.
type CoverageType string

const (
	CoverageFamily        CoverageType = "FAM"
	CoverageDependentOnly CoverageType = "DEP"
)

// =============================================================================
// RATES - The five monetary fields of a premium span
// =============================================================================

// Rates holds the monetary amounts of one premium span. OtherPay is the
// sum of up to two source line-items (OTHERPAYAMT1 + OTHERPAYAMT2).
type Rates struct {
	TotalPremium     decimal.Decimal
	TotalResponsible decimal.Decimal
	APTC             decimal.Decimal
	OtherPay         decimal.Decimal
	CSR              decimal.Decimal
}

// Equal compares all five amounts numerically. A difference of any
// magnitude counts.
func (r Rates) Equal(other Rates) bool {
	return r.TotalPremium.Equal(other.TotalPremium) &&
		r.TotalResponsible.Equal(other.TotalResponsible) &&
		r.APTC.Equal(other.APTC) &&
		r.OtherPay.Equal(other.OtherPay) &&
		r.CSR.Equal(other.CSR)
}

// =============================================================================
// ENROLLMENT SPAN - A coverage period
// =============================================================================

// EnrollmentSpan is a contiguous coverage period for one account under one
// plan/group policy.
//
// INVARIANTS:
//   - EndDate is inclusive and never zero once resolved; a transaction
//     that omits it gets Dec 31 of the start year.
//   - EndDate before StartDate is the canonical encoding of "canceled in
//     the same transaction".
//   - Within one account/year/coverage-type partition, non-canceled spans
//     never overlap. The OverlapResolver enforces this.
type EnrollmentSpan struct {
	ID        SpanID
	AccountID AccountID

	StateCode    string
	Marketplace  string
	BusinessUnit string
	CoverageType CoverageType

	StartDate Date
	EndDate   Date

	ExchangeSubscriberID string

	// EffectuationDate nil means "not yet effectuated" (pending payment).
	EffectuationDate *Date
	Delinquent       bool
	// PaidThroughDate nil means no claim has been paid through any date.
	PaidThroughDate *Date

	PlanID        string
	GroupPolicyID string

	Status SpanStatus
}

// Range returns the span's inclusive date range.
func (s *EnrollmentSpan) Range() DateRange {
	return DateRange{Start: s.StartDate, End: s.EndDate}
}

// IsCanceled reports whether the span is canceled, by status or by the
// end-before-start encoding.
func (s *EnrollmentSpan) IsCanceled() bool {
	return s.Status == StatusCanceled || s.EndDate.Before(s.StartDate)
}

// =============================================================================
// PREMIUM SPAN - A financial sub-period
// =============================================================================

// PremiumSpan is a contiguous financial sub-period within an enrollment
// span.
//
// INVARIANT: The active premium spans of one enrollment span are
// contiguous, non-overlapping, and their union equals the enrollment
// span's own [StartDate, EndDate].
type PremiumSpan struct {
	ID     PremiumSpanID
	SpanID SpanID

	StartDate Date
	EndDate   Date
	Status    PremiumStatus

	CSRVariant string
	Rates      Rates

	// Changed is the dirty bit for downstream billing sync.
	Changed bool
}

// Covers reports whether the premium span's range contains the date.
func (p *PremiumSpan) Covers(d Date) bool {
	return DateRange{Start: p.StartDate, End: p.EndDate}.Contains(d)
}

// =============================================================================
// TIMELINE - Arena of all spans for one account
// =============================================================================

// Timeline holds every enrollment span and premium span of one account in
// flat maps keyed by identifier. Parent linkage is by ID only.
type Timeline struct {
	AccountID AccountID
	Spans     map[SpanID]*EnrollmentSpan
	Premiums  map[PremiumSpanID]*PremiumSpan
}

func NewTimeline(accountID AccountID) *Timeline {
	return &Timeline{
		AccountID: accountID,
		Spans:     make(map[SpanID]*EnrollmentSpan),
		Premiums:  make(map[PremiumSpanID]*PremiumSpan),
	}
}

// AddSpan inserts or replaces a span record.
func (t *Timeline) AddSpan(s *EnrollmentSpan) { t.Spans[s.ID] = s }

// AddPremium inserts or replaces a premium span record.
func (t *Timeline) AddPremium(p *PremiumSpan) { t.Premiums[p.ID] = p }

// Span returns the span with the given ID, or nil.
func (t *Timeline) Span(id SpanID) *EnrollmentSpan { return t.Spans[id] }

// AllSpans returns every span ordered by start date, then ID for
// determinism.
func (t *Timeline) AllSpans() []*EnrollmentSpan {
	spans := make([]*EnrollmentSpan, 0, len(t.Spans))
	for _, s := range t.Spans {
		spans = append(spans, s)
	}
	sortSpans(spans)
	return spans
}

// SpansInPartition returns the non-canceled spans whose start-date year
// and coverage type match, ordered by start date.
func (t *Timeline) SpansInPartition(year int, ct CoverageType) []*EnrollmentSpan {
	var spans []*EnrollmentSpan
	for _, s := range t.Spans {
		if s.StartDate.Year() == year && s.CoverageType == ct && s.Status != StatusCanceled {
			spans = append(spans, s)
		}
	}
	sortSpans(spans)
	return spans
}

// SpanByGroupPolicy returns the non-canceled span with the given group
// policy ID, or nil. When several match (historic data), the latest by
// start date wins.
func (t *Timeline) SpanByGroupPolicy(groupPolicyID string) *EnrollmentSpan {
	var match *EnrollmentSpan
	for _, s := range t.Spans {
		if s.GroupPolicyID != groupPolicyID || s.Status == StatusCanceled {
			continue
		}
		if match == nil || s.StartDate.After(match.StartDate) {
			match = s
		}
	}
	return match
}

// PriorSpans returns the non-canceled spans that end strictly before the
// given date, ordered by end date descending (chronological predecessor
// first).
func (t *Timeline) PriorSpans(before Date) []*EnrollmentSpan {
	var spans []*EnrollmentSpan
	for _, s := range t.Spans {
		if s.Status == StatusCanceled || s.EndDate.Before(s.StartDate) {
			continue
		}
		if s.EndDate.Before(before) {
			spans = append(spans, s)
		}
	}
	sort.Slice(spans, func(i, j int) bool {
		if !spans[i].EndDate.Equal(spans[j].EndDate) {
			return spans[i].EndDate.After(spans[j].EndDate)
		}
		return spans[i].ID < spans[j].ID
	})
	return spans
}

// PremiumsOf returns the premium spans of one enrollment span ordered by
// start date.
func (t *Timeline) PremiumsOf(spanID SpanID) []*PremiumSpan {
	var premiums []*PremiumSpan
	for _, p := range t.Premiums {
		if p.SpanID == spanID {
			premiums = append(premiums, p)
		}
	}
	sort.Slice(premiums, func(i, j int) bool {
		if !premiums[i].StartDate.Equal(premiums[j].StartDate) {
			return premiums[i].StartDate.Before(premiums[j].StartDate)
		}
		return premiums[i].ID < premiums[j].ID
	})
	return premiums
}

// ActivePremiumsOf returns the ACTIVE premium spans of one enrollment
// span ordered by start date.
func (t *Timeline) ActivePremiumsOf(spanID SpanID) []*PremiumSpan {
	all := t.PremiumsOf(spanID)
	active := all[:0:0]
	for _, p := range all {
		if p.Status == PremiumActive {
			active = append(active, p)
		}
	}
	return active
}

// Clone deep-copies the timeline. The engine materializes candidate
// changes on a clone so a rejected transaction leaves the caller's
// timeline untouched.
func (t *Timeline) Clone() *Timeline {
	c := NewTimeline(t.AccountID)
	for id, s := range t.Spans {
		span := *s
		if s.EffectuationDate != nil {
			d := *s.EffectuationDate
			span.EffectuationDate = &d
		}
		if s.PaidThroughDate != nil {
			d := *s.PaidThroughDate
			span.PaidThroughDate = &d
		}
		c.Spans[id] = &span
	}
	for id, p := range t.Premiums {
		premium := *p
		c.Premiums[id] = &premium
	}
	return c
}

func sortSpans(spans []*EnrollmentSpan) {
	sort.Slice(spans, func(i, j int) bool {
		if !spans[i].StartDate.Equal(spans[j].StartDate) {
			return spans[i].StartDate.Before(spans[j].StartDate)
		}
		return spans[i].ID < spans[j].ID
	})
}
