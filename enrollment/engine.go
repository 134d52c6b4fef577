/*
engine.go - Per-transaction orchestration

PURPOSE:
  Runs one transaction against one account's timeline and emits the
  resulting mutations as in-memory instructions. The engine performs no
  persistence, emits no events, and calls no services; the caller applies
  the mutations within its own unit of work.

CONTROL FLOW PER TYPE:
  ADD             resolve overlaps -> create span -> derive effectuation
                  and status -> build premium spans from scratch
  CANCEL          locate span by group policy -> end-before-start
                  encoding, status CANCELED, premiums canceled
  TERM            locate span -> shorten to the term date, trim premiums
  REINSTATEMENT   locate latest span for the group policy -> restore end
                  date, re-derive status, rebuild/extend premium tail
  CHANGE          classify financial vs non-financial -> apply premium
                  update instructions

MATERIALIZE THEN APPLY:
  Process works on a clone of the timeline it is given, so a rejected
  transaction leaves the caller's state untouched and the caller can run
  an out-of-process validation round trip between materializing the
  mutations and persisting them.

ERROR POLICY:
  Any failure aborts the whole transaction: Process returns an error and
  nil mutations, never a partial set.

SEE ALSO:
  - overlap.go, status.go, reconcile.go, classify.go: The components
  - account/processor.go: Loads, validates, persists around this engine
*/
package enrollment

import "github.com/google/uuid"

// =============================================================================
// MUTATIONS - The engine's output
// =============================================================================

// Mutations is the set of timeline changes one transaction produced.
// Records point into the engine's working clone; the caller persists
// them as upserts.
type Mutations struct {
	NewSpans        []*EnrollmentSpan
	UpdatedSpans    []*EnrollmentSpan
	NewPremiums     []*PremiumSpan
	UpdatedPremiums []*PremiumSpan

	// Decisions is the transient per-premium-span reconciliation record
	// for CHANGE transactions, including no-change entries.
	Decisions []PremiumUpdate
}

// Empty reports whether the transaction produced no persistent change.
func (m *Mutations) Empty() bool {
	return len(m.NewSpans) == 0 && len(m.UpdatedSpans) == 0 &&
		len(m.NewPremiums) == 0 && len(m.UpdatedPremiums) == 0
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine orchestrates the timeline components for one transaction at a
// time. Processing is single-threaded per account; callers serialize
// access (the engine holds no locks).
type Engine struct {
	// Today supplies the current date. Injectable for tests; the engine
	// never reads the wall clock elsewhere.
	Today func() Date

	// NewSpanID and NewPremiumID mint identifiers for created records.
	NewSpanID    func() SpanID
	NewPremiumID func() PremiumSpanID

	resolver   OverlapResolver
	status     StatusDeterminer
	reconciler *PremiumSpanReconciler
	classifier *ChangeClassifier
}

// NewEngine returns an engine with wall-clock today and UUID identifiers.
func NewEngine() *Engine {
	e := &Engine{
		Today:        Today,
		NewSpanID:    func() SpanID { return SpanID(uuid.NewString()) },
		NewPremiumID: func() PremiumSpanID { return PremiumSpanID(uuid.NewString()) },
	}
	e.reconciler = &PremiumSpanReconciler{NewID: func() PremiumSpanID { return e.NewPremiumID() }}
	e.classifier = &ChangeClassifier{Reconciler: e.reconciler}
	return e
}

// Process runs one transaction against the timeline and returns the
// resulting mutations. The given timeline is never mutated.
func (e *Engine) Process(tl *Timeline, txn *Transaction) (*Mutations, error) {
	if err := e.validate(txn); err != nil {
		return nil, err
	}

	work := tl.Clone()
	switch txn.Type {
	case TransactionAdd:
		return e.processAdd(work, txn)
	case TransactionChange:
		return e.processChange(work, txn)
	case TransactionCancel:
		return e.processCancel(work, txn)
	case TransactionTerm:
		return e.processTerm(work, txn)
	case TransactionReinstatement:
		return e.processReinstatement(work, txn)
	default:
		return nil, &MalformedTransactionError{TransactionID: txn.ID, Field: "type", Reason: "unknown transaction type"}
	}
}

func (e *Engine) validate(txn *Transaction) error {
	if txn.StartDate.IsZero() {
		return &MalformedTransactionError{TransactionID: txn.ID, Field: "start date", Reason: "required"}
	}
	if txn.GroupPolicyID == "" {
		return &MalformedTransactionError{TransactionID: txn.ID, Field: "group policy id", Reason: "required"}
	}
	if txn.Type == TransactionAdd {
		if txn.PlanID == "" {
			return &MalformedTransactionError{TransactionID: txn.ID, Field: "plan id", Reason: "required for ADD"}
		}
		if txn.CoverageType == "" {
			return &MalformedTransactionError{TransactionID: txn.ID, Field: "coverage type", Reason: "required for ADD"}
		}
		if txn.ExchangeSubscriberID == "" {
			return &MalformedTransactionError{TransactionID: txn.ID, Field: "exchange subscriber id", Reason: "no household head resolved"}
		}
	}
	return nil
}

// =============================================================================
// ADD
// =============================================================================

func (e *Engine) processAdd(work *Timeline, txn *Transaction) (*Mutations, error) {
	start := txn.StartDate
	end := txn.EffectiveEnd()

	// Resolve conflicts first: status determination for the new span
	// consults the possibly just-mutated prior span.
	res, err := e.resolver.Resolve(work, start, end, txn.CoverageType)
	if err != nil {
		return nil, err
	}

	priors := work.PriorSpans(start)
	today := e.Today()

	span := &EnrollmentSpan{
		ID:                   e.NewSpanID(),
		AccountID:            work.AccountID,
		StateCode:            txn.StateCode,
		Marketplace:          txn.Marketplace,
		BusinessUnit:         txn.BusinessUnit,
		CoverageType:         txn.CoverageType,
		StartDate:            start,
		EndDate:              end,
		ExchangeSubscriberID: txn.ExchangeSubscriberID,
		PlanID:               txn.PlanID,
		GroupPolicyID:        txn.GroupPolicyID,
	}
	span.EffectuationDate = e.status.DeriveEffectuation(txn, start, priors, today)
	span.Status = e.status.DetermineStatus(span, priors, today)

	premiums := e.reconciler.BuildSpans(span, txn)

	work.AddSpan(span)
	for _, p := range premiums {
		work.AddPremium(p)
	}

	muts := &Mutations{NewSpans: []*EnrollmentSpan{span}, NewPremiums: premiums}
	muts.UpdatedSpans = append(muts.UpdatedSpans, res.Shortened...)
	muts.UpdatedSpans = append(muts.UpdatedSpans, res.Canceled...)
	muts.UpdatedPremiums = res.TouchedPremiums
	return muts, nil
}

// =============================================================================
// CANCEL / TERM / REINSTATEMENT
// =============================================================================

func (e *Engine) processCancel(work *Timeline, txn *Transaction) (*Mutations, error) {
	span := work.SpanByGroupPolicy(txn.GroupPolicyID)
	if span == nil {
		return nil, &NotFoundError{AccountID: work.AccountID, GroupPolicyID: txn.GroupPolicyID, Date: txn.StartDate, Kind: "enrollment span"}
	}

	// Canonical canceled-same-transaction encoding: start stays as given,
	// end set before it.
	span.EndDate = span.StartDate.AddDays(-1)
	span.Status = e.status.DetermineStatus(span, work.PriorSpans(span.StartDate), e.Today())

	touched := cancelPremiums(work, span.ID)
	return &Mutations{UpdatedSpans: []*EnrollmentSpan{span}, UpdatedPremiums: touched}, nil
}

func (e *Engine) processTerm(work *Timeline, txn *Transaction) (*Mutations, error) {
	span := work.SpanByGroupPolicy(txn.GroupPolicyID)
	if span == nil {
		return nil, &NotFoundError{AccountID: work.AccountID, GroupPolicyID: txn.GroupPolicyID, Date: txn.StartDate, Kind: "enrollment span"}
	}

	termDate := txn.StartDate
	if txn.EndDate != nil {
		termDate = *txn.EndDate
	}

	span.EndDate = termDate
	span.Status = e.status.DetermineStatus(span, work.PriorSpans(span.StartDate), e.Today())

	touched := trimPremiums(work, span.ID, termDate)
	return &Mutations{UpdatedSpans: []*EnrollmentSpan{span}, UpdatedPremiums: touched}, nil
}

func (e *Engine) processReinstatement(work *Timeline, txn *Transaction) (*Mutations, error) {
	span := latestReinstatableSpan(work, txn.GroupPolicyID, txn.StartDate)
	if span == nil {
		return nil, &NotFoundError{AccountID: work.AccountID, GroupPolicyID: txn.GroupPolicyID, Date: txn.StartDate, Kind: "enrollment span"}
	}

	newEnd := txn.EffectiveEnd()
	span.EndDate = newEnd
	span.Status = e.status.DetermineStatus(span, work.PriorSpans(span.StartDate), e.Today())

	muts := &Mutations{UpdatedSpans: []*EnrollmentSpan{span}}

	active := work.ActivePremiumsOf(span.ID)
	if len(txn.TotalPremiumItems()) > 0 {
		// Rebuild the reopened tail from the transaction's line-items.
		tailStart := span.StartDate
		if len(active) > 0 {
			tailStart = active[len(active)-1].EndDate.AddDays(1)
		}
		if tailStart.BeforeOrEqual(newEnd) {
			rebuilt := e.reconciler.BuildSpansInRange(span.ID, tailStart, newEnd, txn)
			for _, p := range rebuilt {
				work.AddPremium(p)
			}
			muts.NewPremiums = rebuilt
		}
	} else if len(active) > 0 {
		// No financial data on the transaction: stretch the last active
		// premium span to cover the restored end date.
		last := active[len(active)-1]
		if last.EndDate.Before(newEnd) {
			last.EndDate = newEnd
			last.Changed = true
			muts.UpdatedPremiums = append(muts.UpdatedPremiums, last)
		}
	}
	return muts, nil
}

// latestReinstatableSpan finds the most recent span a reinstatement can
// reopen: one that is canceled, or one termed before the transaction
// start. A span still running past the start date is not a candidate.
func latestReinstatableSpan(tl *Timeline, groupPolicyID string, start Date) *EnrollmentSpan {
	var match *EnrollmentSpan
	for _, s := range tl.Spans {
		if s.GroupPolicyID != groupPolicyID {
			continue
		}
		if !s.IsCanceled() && !s.EndDate.Before(start) {
			continue
		}
		if match == nil || s.StartDate.After(match.StartDate) {
			match = s
		}
	}
	return match
}

// =============================================================================
// CHANGE
// =============================================================================

func (e *Engine) processChange(work *Timeline, txn *Transaction) (*Mutations, error) {
	decision, err := e.classifier.Classify(work, txn)
	if err != nil {
		return nil, err
	}

	muts := &Mutations{Decisions: decision.Updates}
	if !decision.Financial {
		return muts, nil
	}

	for _, u := range decision.Updates {
		switch u.Kind {
		case DecisionShorten:
			u.Existing.EndDate = u.NewEnd
			u.Existing.Changed = true
			muts.UpdatedPremiums = append(muts.UpdatedPremiums, u.Existing)

		case DecisionRecreate:
			if !u.NewEnd.IsZero() {
				// Replacement begins mid-span: keep the head.
				u.Existing.EndDate = u.NewEnd
			} else {
				u.Existing.Status = PremiumCanceled
			}
			u.Existing.Changed = true
			muts.UpdatedPremiums = append(muts.UpdatedPremiums, u.Existing)
			work.AddPremium(u.Replacement)
			muts.NewPremiums = append(muts.NewPremiums, u.Replacement)
		}
	}
	return muts, nil
}

// =============================================================================
// DELINQUENCY SWEEP
// =============================================================================

// Sweep re-derives the status of every non-canceled span with the current
// date, so spans whose claim-paid-through date has passed move out of
// their grace period. Returns mutations for the spans whose status
// changed.
func (e *Engine) Sweep(tl *Timeline) *Mutations {
	work := tl.Clone()
	today := e.Today()

	muts := &Mutations{}
	for _, span := range work.AllSpans() {
		if span.Status == StatusCanceled {
			continue
		}
		st := e.status.DetermineStatus(span, work.PriorSpans(span.StartDate), today)
		if st != span.Status {
			span.Status = st
			muts.UpdatedSpans = append(muts.UpdatedSpans, span)
		}
	}
	return muts
}
