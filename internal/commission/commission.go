// Package commission computes promoter commissions from attributable
// check-in counts. Everything here is pure integer arithmetic over its
// inputs, so repeated runs against the same ledger state yield identical
// results.
package commission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"crowdstack-backend/internal/domain"
	"github.com/google/uuid"
)

// MaxAmount caps any configured amount (10,000,000.00 in a two-decimal
// currency) so per-head multiplication stays inside int64.
const MaxAmount int64 = 1_000_000_000

// Scheme turns a check-in count into an amount in minor currency units.
type Scheme interface {
	Amount(checkins int) int64
}

type FlatConfig struct {
	AmountPerHead int64 `json:"amount_per_head"`
}

func (c FlatConfig) Amount(checkins int) int64 {
	return int64(checkins) * c.AmountPerHead
}

type Tier struct {
	Threshold int   `json:"threshold"`
	Amount    int64 `json:"amount"`
}

type TieredConfig struct {
	Tiers []Tier `json:"tiers"`
}

// Amount pays the highest tier whose threshold is met. Tiers are walked in
// ascending threshold order with a stable sort, so a later tier sharing a
// threshold with an earlier one wins.
func (c TieredConfig) Amount(checkins int) int64 {
	tiers := make([]Tier, len(c.Tiers))
	copy(tiers, c.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Threshold < tiers[j].Threshold })

	var amount int64
	for _, t := range tiers {
		if t.Threshold > checkins {
			break
		}
		amount = t.Amount
	}
	return amount
}

// Decode parses a stored config without the save-time ordering checks.
func Decode(typ domain.CommissionType, raw json.RawMessage) (Scheme, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown commission type %q", domain.ErrConfig, typ)
	}
	if typ == domain.CommissionFlatPerHead {
		var c FlatConfig
		if err := strictUnmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
		}
		return c, nil
	}
	var c TieredConfig
	if err := strictUnmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	return c, nil
}

// Validate is run when a config is saved. Besides decoding it rejects
// negative amounts, empty tier lists and thresholds that are not strictly
// ascending in the order given.
func Validate(typ domain.CommissionType, raw json.RawMessage) error {
	scheme, err := Decode(typ, raw)
	if err != nil {
		return err
	}
	switch c := scheme.(type) {
	case FlatConfig:
		if c.AmountPerHead < 0 {
			return fmt.Errorf("%w: amount_per_head must not be negative", domain.ErrConfig)
		}
		if c.AmountPerHead > MaxAmount {
			return fmt.Errorf("%w: amount_per_head must not exceed %d", domain.ErrConfig, MaxAmount)
		}
	case TieredConfig:
		if len(c.Tiers) == 0 {
			return fmt.Errorf("%w: at least one tier is required", domain.ErrConfig)
		}
		for i, t := range c.Tiers {
			if t.Threshold < 0 {
				return fmt.Errorf("%w: tier %d threshold must not be negative", domain.ErrConfig, i)
			}
			if t.Amount < 0 {
				return fmt.Errorf("%w: tier %d amount must not be negative", domain.ErrConfig, i)
			}
			if t.Amount > MaxAmount {
				return fmt.Errorf("%w: tier %d amount must not exceed %d", domain.ErrConfig, i, MaxAmount)
			}
			if i > 0 && t.Threshold <= c.Tiers[i-1].Threshold {
				return fmt.Errorf("%w: tier thresholds must be strictly ascending (tier %d: %d after %d)",
					domain.ErrConfig, i, t.Threshold, c.Tiers[i-1].Threshold)
			}
		}
	}
	return nil
}

type Result struct {
	PromoterID     uuid.UUID
	CommissionType domain.CommissionType
	CheckinsCount  int
	Amount         domain.Money
}

// Compute evaluates every tally. Results are ordered by promoter id.
func Compute(tallies []domain.PromoterTally, currency string) ([]Result, error) {
	results := make([]Result, 0, len(tallies))
	for _, t := range tallies {
		scheme, err := Decode(t.Assignment.CommissionType, t.Assignment.CommissionConfig)
		if err != nil {
			return nil, fmt.Errorf("promoter %s: %w", t.Assignment.PromoterID, err)
		}
		results = append(results, Result{
			PromoterID:     t.Assignment.PromoterID,
			CommissionType: t.Assignment.CommissionType,
			CheckinsCount:  t.CheckinsCount,
			Amount:         domain.Money{Amount: scheme.Amount(t.CheckinsCount), Currency: currency},
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return bytes.Compare(results[i].PromoterID[:], results[j].PromoterID[:]) < 0
	})
	return results, nil
}

// Total sums the amounts of a result set.
func Total(results []Result) int64 {
	var total int64
	for _, r := range results {
		total += r.Amount.Amount
	}
	return total
}

func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("config is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after config")
	}
	return nil
}
