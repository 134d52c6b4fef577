/*
classify.go - Financial vs non-financial CHANGE classification

PURPOSE:
  Decides whether an incoming CHANGE transaction requires premium span
  reconciliation, and against which enrollment span (matched by group
  policy identifier). Non-financial changes touch demographics only and
  leave every premium span alone.

RULES:
  - No rate line-items at all         -> non-financial
  - No TOTPREMAMT line-item           -> non-financial
  - Otherwise run the reconciler diff -> financial iff any instruction
    is something other than "no change"

  The diff is pure over (timeline, transaction): re-running it with no
  intervening mutation yields the same decision set.

SEE ALSO:
  - reconcile.go: The per-slice decision table
  - engine.go: Applies the resulting instructions
*/
package enrollment

// ChangeDecision is the classifier's output for one CHANGE transaction.
type ChangeDecision struct {
	// Financial is true when at least one premium span needs an update.
	Financial bool
	// Span is the enrollment span matched by group policy identifier.
	Span *EnrollmentSpan
	// Updates holds the per-premium-span instructions (empty for
	// non-financial changes).
	Updates []PremiumUpdate
}

// ChangeClassifier orchestrates the reconciler for CHANGE transactions.
type ChangeClassifier struct {
	Reconciler *PremiumSpanReconciler
}

// Classify matches the transaction to its enrollment span and computes
// the premium update set.
func (c *ChangeClassifier) Classify(tl *Timeline, txn *Transaction) (*ChangeDecision, error) {
	span := tl.SpanByGroupPolicy(txn.GroupPolicyID)
	if span == nil {
		return nil, &NotFoundError{
			AccountID:     tl.AccountID,
			GroupPolicyID: txn.GroupPolicyID,
			Date:          txn.StartDate,
			Kind:          "enrollment span",
		}
	}

	if !txn.HasRateItems() || len(txn.TotalPremiumItems()) == 0 {
		return &ChangeDecision{Financial: false, Span: span}, nil
	}

	updates, err := c.Reconciler.Reconcile(tl, span, txn)
	if err != nil {
		return nil, err
	}

	financial := false
	for _, u := range updates {
		if u.Kind != DecisionNoChange {
			financial = true
			break
		}
	}
	return &ChangeDecision{Financial: financial, Span: span, Updates: updates}, nil
}
