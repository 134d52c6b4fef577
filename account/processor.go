/*
processor.go - Transaction processing around the enrollment engine

PURPOSE:
  The unit-of-work layer: load the account and its timeline, run the
  engine (materialize), run the validation strategy, persist the
  mutations (apply). One transaction, one account, one store batch.

CONCURRENCY:
  Processing is single-threaded per account. The processor does not lock;
  callers serialize transactions for the same account (the HTTP layer
  processes requests as they arrive, batch callers use a per-account
  queue). Between materialize and apply the account must not be mutated
  by anyone else.

LOGGING:
  The engine is silent by design. The processor logs outcomes: applied
  mutation counts, rejections, and NO_VALID_STATUS spans - the engine's
  data-quality signal for inconsistent input, which must be surfaced, not
  silently accepted.
*/
package account

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zeus-health/account-processor/enrollment"
)

// Processor runs transactions end to end.
type Processor struct {
	Accounts  Store
	Timelines enrollment.TimelineStore
	Engine    *enrollment.Engine
	Validator ValidationStrategy
	Log       *zap.Logger
}

// NewProcessor wires a processor with the default engine and a
// pass-through validation strategy.
func NewProcessor(accounts Store, timelines enrollment.TimelineStore, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		Accounts:  accounts,
		Timelines: timelines,
		Engine:    enrollment.NewEngine(),
		Validator: PassThrough{},
		Log:       log,
	}
}

// Process applies one transaction to its account's timeline and returns
// the persisted mutations. Any failure aborts the whole transaction;
// nothing partial is committed.
func (p *Processor) Process(ctx context.Context, txn *enrollment.Transaction) (*enrollment.Mutations, error) {
	acct, err := p.Accounts.Account(ctx, txn.AccountID)
	if err != nil {
		return nil, err
	}

	// ADDs need the exchange subscriber id before the engine runs; it
	// comes from the household head. Derived onto a copy so the caller's
	// transaction stays untouched.
	if txn.Type == enrollment.TransactionAdd && txn.ExchangeSubscriberID == "" {
		subscriberID, err := acct.ExchangeSubscriberID()
		if err != nil {
			return nil, err
		}
		derived := *txn
		derived.ExchangeSubscriberID = subscriberID
		txn = &derived
	}

	tl, err := p.Timelines.Timeline(ctx, txn.AccountID)
	if err != nil {
		return nil, err
	}

	// Pass 1: materialize candidate changes.
	muts, err := p.Engine.Process(tl, txn)
	if err != nil {
		p.Log.Warn("transaction rejected",
			zap.String("transaction_id", txn.ID),
			zap.String("account_id", string(txn.AccountID)),
			zap.String("type", string(txn.Type)),
			zap.Error(err))
		return nil, err
	}

	// Validation round trip between materialize and apply.
	if err := p.Validator.Validate(ctx, txn, muts); err != nil {
		p.Log.Warn("transaction failed validation",
			zap.String("transaction_id", txn.ID),
			zap.String("account_id", string(txn.AccountID)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", enrollment.ErrValidationRejected, err)
	}

	// Pass 2: apply.
	if err := p.Timelines.Apply(ctx, txn.AccountID, muts); err != nil {
		return nil, fmt.Errorf("apply mutations for account %s: %w", txn.AccountID, err)
	}

	p.logOutcome(txn, muts)
	return muts, nil
}

func (p *Processor) logOutcome(txn *enrollment.Transaction, muts *enrollment.Mutations) {
	for _, s := range append(append([]*enrollment.EnrollmentSpan{}, muts.NewSpans...), muts.UpdatedSpans...) {
		if s.Status == enrollment.StatusNoValidStatus {
			p.Log.Error("span derived NO_VALID_STATUS: inconsistent input",
				zap.String("transaction_id", txn.ID),
				zap.String("account_id", string(txn.AccountID)),
				zap.String("span_id", string(s.ID)))
		}
	}

	p.Log.Info("transaction applied",
		zap.String("transaction_id", txn.ID),
		zap.String("account_id", string(txn.AccountID)),
		zap.String("type", string(txn.Type)),
		zap.Int("new_spans", len(muts.NewSpans)),
		zap.Int("updated_spans", len(muts.UpdatedSpans)),
		zap.Int("new_premiums", len(muts.NewPremiums)),
		zap.Int("updated_premiums", len(muts.UpdatedPremiums)))
}

// SweepDelinquency re-derives span statuses for every account so spans
// whose claim-paid-through date has passed move out of their grace
// period. Returns the number of spans whose status changed.
func (p *Processor) SweepDelinquency(ctx context.Context) (int, error) {
	ids, err := p.Accounts.AccountIDs(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, id := range ids {
		tl, err := p.Timelines.Timeline(ctx, id)
		if err != nil {
			return changed, err
		}
		muts := p.Engine.Sweep(tl)
		if muts.Empty() {
			continue
		}
		if err := p.Timelines.Apply(ctx, id, muts); err != nil {
			return changed, fmt.Errorf("apply sweep for account %s: %w", id, err)
		}
		changed += len(muts.UpdatedSpans)
		p.Log.Info("delinquency sweep updated spans",
			zap.String("account_id", string(id)),
			zap.Int("spans", len(muts.UpdatedSpans)))
	}
	return changed, nil
}
