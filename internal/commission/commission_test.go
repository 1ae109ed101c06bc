package commission

import (
	"encoding/json"
	"errors"
	"testing"

	"crowdstack-backend/internal/domain"
	"github.com/google/uuid"
)

func TestTieredBoundaries(t *testing.T) {
	cfg := TieredConfig{Tiers: []Tier{{Threshold: 10, Amount: 5000}, {Threshold: 20, Amount: 12000}}}
	tests := []struct {
		checkins int
		want     int64
	}{
		{0, 0},
		{9, 0},
		{10, 5000},
		{19, 5000},
		{20, 12000},
		{250, 12000},
	}
	for _, tt := range tests {
		if got := cfg.Amount(tt.checkins); got != tt.want {
			t.Errorf("Amount(%d) = %d, want %d", tt.checkins, got, tt.want)
		}
	}
}

func TestTieredUnorderedLegacyConfig(t *testing.T) {
	cfg := TieredConfig{Tiers: []Tier{{Threshold: 20, Amount: 12000}, {Threshold: 10, Amount: 5000}}}
	if got := cfg.Amount(15); got != 5000 {
		t.Errorf("expected 5000, got %d", got)
	}
	if got := cfg.Amount(20); got != 12000 {
		t.Errorf("expected 12000, got %d", got)
	}
}

func TestTieredDuplicateThresholdLaterWins(t *testing.T) {
	cfg := TieredConfig{Tiers: []Tier{{Threshold: 10, Amount: 5000}, {Threshold: 10, Amount: 7000}}}
	if got := cfg.Amount(10); got != 7000 {
		t.Errorf("expected later tier 7000, got %d", got)
	}
}

func TestFlatPerHead(t *testing.T) {
	cfg := FlatConfig{AmountPerHead: 500}
	if got := cfg.Amount(17); got != 8500 {
		t.Errorf("expected 8500, got %d", got)
	}
	if got := cfg.Amount(0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		typ     domain.CommissionType
		raw     string
		wantErr bool
	}{
		{"flat ok", domain.CommissionFlatPerHead, `{"amount_per_head":500}`, false},
		{"flat negative", domain.CommissionFlatPerHead, `{"amount_per_head":-1}`, true},
		{"flat unknown field", domain.CommissionFlatPerHead, `{"amount":500}`, true},
		{"tiers ok", domain.CommissionTieredThresholds, `{"tiers":[{"threshold":10,"amount":5000},{"threshold":20,"amount":12000}]}`, false},
		{"tiers descending", domain.CommissionTieredThresholds, `{"tiers":[{"threshold":20,"amount":12000},{"threshold":10,"amount":5000}]}`, true},
		{"tiers duplicate", domain.CommissionTieredThresholds, `{"tiers":[{"threshold":10,"amount":5000},{"threshold":10,"amount":6000}]}`, true},
		{"tiers empty", domain.CommissionTieredThresholds, `{"tiers":[]}`, true},
		{"tiers negative amount", domain.CommissionTieredThresholds, `{"tiers":[{"threshold":1,"amount":-5}]}`, true},
		{"empty body", domain.CommissionFlatPerHead, ``, true},
		{"unknown type", domain.CommissionType("percentage"), `{}`, true},
		{"flat trailing object", domain.CommissionFlatPerHead, `{"amount_per_head":5}{"x":1}`, true},
		{"flat trailing garbage", domain.CommissionFlatPerHead, `{"amount_per_head":5} x`, true},
		{"flat trailing newline", domain.CommissionFlatPerHead, "{\"amount_per_head\":5}\n", false},
		{"flat at cap", domain.CommissionFlatPerHead, `{"amount_per_head":1000000000}`, false},
		{"flat above cap", domain.CommissionFlatPerHead, `{"amount_per_head":1000000001}`, true},
		{"flat overflowing", domain.CommissionFlatPerHead, `{"amount_per_head":9223372036854775807}`, true},
		{"tier above cap", domain.CommissionTieredThresholds, `{"tiers":[{"threshold":1,"amount":1000000001}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.typ, json.RawMessage(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrConfig) {
					t.Fatalf("expected ErrConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestComputeIsDeterministicAndSorted(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	tallies := []domain.PromoterTally{
		{
			Assignment: domain.EventPromoter{
				PromoterID:       b,
				CommissionType:   domain.CommissionTieredThresholds,
				CommissionConfig: json.RawMessage(`{"tiers":[{"threshold":10,"amount":5000},{"threshold":20,"amount":12000}]}`),
			},
			CheckinsCount: 19,
		},
		{
			Assignment: domain.EventPromoter{
				PromoterID:       a,
				CommissionType:   domain.CommissionFlatPerHead,
				CommissionConfig: json.RawMessage(`{"amount_per_head":500}`),
			},
			CheckinsCount: 17,
		},
	}

	first, err := Compute(tallies, "USD")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	second, err := Compute(tallies, "USD")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 results, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("result %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
	if first[0].PromoterID != a || first[0].Amount.Amount != 8500 {
		t.Errorf("unexpected first result %+v", first[0])
	}
	if first[1].PromoterID != b || first[1].Amount.Amount != 5000 {
		t.Errorf("unexpected second result %+v", first[1])
	}
	if Total(first) != 13500 {
		t.Errorf("expected total 13500, got %d", Total(first))
	}
}

func TestComputeSurfacesBrokenConfig(t *testing.T) {
	tallies := []domain.PromoterTally{{
		Assignment: domain.EventPromoter{
			PromoterID:       uuid.New(),
			CommissionType:   domain.CommissionFlatPerHead,
			CommissionConfig: json.RawMessage(`not json`),
		},
	}}
	if _, err := Compute(tallies, "USD"); !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := Decode(domain.CommissionType("Flat_Per_Head"), json.RawMessage(`{"amount_per_head":1}`)); !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestFlatAtCapStaysPositive(t *testing.T) {
	cfg := FlatConfig{AmountPerHead: MaxAmount}
	if got := cfg.Amount(1_000_000); got <= 0 || got != MaxAmount*1_000_000 {
		t.Errorf("expected %d, got %d", MaxAmount*1_000_000, got)
	}
}
