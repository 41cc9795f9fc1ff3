package cartmerge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

type cartRepo interface {
	Create(ctx context.Context, in cartrepo.CreateInput) (*domain.Cart, error)
	GetActiveByOwner(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	ApplyMerge(ctx context.Context, in cartrepo.ApplyMergeInput) (*domain.Cart, error)
}

// MergeInfo summarizes one reconciliation for the response contract.
type MergeInfo struct {
	Strategy       domain.MergeStrategy `json:"strategy"`
	ItemsFromGuest int                  `json:"itemsFromGuest"`
	ItemsFromUser  int                  `json:"itemsFromUser"`
	TotalItems     int                  `json:"totalItems"`
}

// Result is the merged target cart plus the merge summary.
type Result struct {
	Cart *domain.Cart
	Info MergeInfo
}

// Engine folds a guest cart into an authenticated principal's cart under a
// caller-selected strategy. The store write is one transaction guarded by
// the source's status, which makes retries idempotent.
type Engine struct {
	repo     cartRepo
	logger   *log.Logger
	currency string
}

// New creates an Engine. currency is the default for lazily created
// target carts when no source cart dictates one.
func New(repo cartrepo.Repository, logger *log.Logger, currency string) *Engine {
	return newEngine(repo, logger, currency)
}

func newEngine(repo cartRepo, logger *log.Logger, currency string) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if currency == "" {
		currency = "USD"
	}
	return &Engine{repo: repo, logger: logger, currency: currency}
}

// MergeGuestCart reconciles the guest session's active cart into the
// principal's active cart. An absent or empty guest cart is a no-op
// success with ItemsFromGuest = 0; an absent target cart is created first.
func (e *Engine) MergeGuestCart(ctx context.Context, principal domain.Principal, guestSessionID string, strategy domain.MergeStrategy) (*Result, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("unknown merge strategy %q", strategy)
	}
	return e.merge(ctx, principal, guestSessionID, strategy, true)
}

func (e *Engine) merge(ctx context.Context, principal domain.Principal, guestSessionID string, strategy domain.MergeStrategy, retry bool) (*Result, error) {

	source, err := e.repo.GetActiveByOwner(ctx, domain.CartOwner{Type: domain.OwnerGuest, ID: guestSessionID})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	target, err := e.targetCart(ctx, principal, source)
	if err != nil {
		return nil, err
	}

	if source == nil || len(source.Items) == 0 {
		return &Result{
			Cart: target,
			Info: MergeInfo{
				Strategy:       strategy,
				ItemsFromGuest: 0,
				ItemsFromUser:  len(target.Items),
				TotalItems:     len(target.Items),
			},
		}, nil
	}

	items, info := reconcile(target.Items, source.Items, strategy)
	in := cartrepo.ApplyMergeInput{
		TargetID:       target.ID,
		SourceID:       source.ID,
		Strategy:       strategy,
		Items:          items,
		ItemsFromGuest: info.ItemsFromGuest,
		ItemsFromUser:  info.ItemsFromUser,
	}

	merged, err := e.repo.ApplyMerge(ctx, in)
	if errors.Is(err, domain.ErrMergeConflict) && retry {
		// A concurrent writer touched one of the carts between the read
		// and the write. Re-read and retry once; the merged-source guard
		// makes the retry safe.
		e.logger.Printf("cart merge conflict target=%s source=%s, retrying", target.ID, source.ID)
		return e.merge(ctx, principal, guestSessionID, strategy, false)
	}
	if err != nil {
		return nil, err
	}

	info.TotalItems = len(merged.Items)
	return &Result{Cart: merged, Info: info}, nil
}

// targetCart finds the principal's active cart or lazily creates one. A
// guest cart whose owner-key type does not match the principal never
// becomes the target; the principal always gets a cart of its own type.
func (e *Engine) targetCart(ctx context.Context, principal domain.Principal, source *domain.Cart) (*domain.Cart, error) {
	owner := principal.CartOwner()
	target, err := e.repo.GetActiveByOwner(ctx, owner)
	if err == nil {
		return target, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	currency := e.currency
	if source != nil {
		currency = source.Currency
	}
	created, err := e.repo.Create(ctx, cartrepo.CreateInput{Owner: owner, Currency: currency})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost a creation race; the winner's cart is the target.
		return e.repo.GetActiveByOwner(ctx, owner)
	}
	return created, err
}

// reconcile computes the target's item set under the strategy. It returns
// nil items for keep_existing, which the store reads as "leave the lines
// alone". Counts are line counts, not quantities.
func reconcile(target, source []domain.CartItem, strategy domain.MergeStrategy) ([]domain.CartItem, MergeInfo) {
	info := MergeInfo{Strategy: strategy}

	switch strategy {
	case domain.StrategyReplace:
		info.ItemsFromGuest = len(source)
		return copyItems(source), info

	case domain.StrategyKeepExisting:
		info.ItemsFromUser = len(target)
		return nil, info

	case domain.StrategyMerge:
		info.ItemsFromGuest = len(source)
		info.ItemsFromUser = len(target)
		out := copyItems(target)
		index := make(map[[2]string]int, len(out))
		for i, it := range out {
			index[[2]string{it.ProductID, it.VariantID}] = i
		}
		for _, it := range source {
			key := [2]string{it.ProductID, it.VariantID}
			if i, ok := index[key]; ok {
				// Matched line: quantities add up, the guest's cached
				// price and display data win as the fresher copy.
				out[i].Quantity += it.Quantity
				out[i].UnitPriceCents = it.UnitPriceCents
				out[i].PromoCents = it.PromoCents
				out[i].Snapshot = copySnapshot(it.Snapshot)
			} else {
				out = append(out, copyItem(it))
			}
		}
		return out, info
	}

	return nil, info
}

func copyItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		out = append(out, copyItem(it))
	}
	return out
}

func copyItem(it domain.CartItem) domain.CartItem {
	cp := it
	cp.Snapshot = copySnapshot(it.Snapshot)
	if it.PromoCents != nil {
		v := *it.PromoCents
		cp.PromoCents = &v
	}
	return cp
}

func copySnapshot(snap map[string]interface{}) map[string]interface{} {
	if snap == nil {
		return nil
	}
	out := make(map[string]interface{}, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out
}
