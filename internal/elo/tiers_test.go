package elo

import (
	"testing"

	"github.com/google/uuid"
)

func rated(values ...float64) []Rated {
	out := make([]Rated, len(values))
	for i, v := range values {
		out[i] = Rated{AlbumID: uuid.New(), Rating: Rating{Value: v}}
	}
	return out
}

func TestTiers(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		k         int
		wantTiers int // -1 accepts anything from 1 to k
		wantTop   int // albums in the best tier, -1 to skip
	}{
		{name: "empty input", values: nil, k: 3, wantTiers: 0},
		{name: "non-positive k", values: []float64{1500, 1510}, k: 0, wantTiers: 0},
		{name: "all baseline", values: []float64{1500, 1500, 1500}, k: 3, wantTiers: 1, wantTop: 3},
		{name: "fewer distinct than k", values: []float64{1600, 1500, 1500}, k: 3, wantTiers: 2, wantTop: 1},
		{
			name:      "three clear groups",
			values:    []float64{1800, 1790, 1805, 1500, 1495, 1510, 1200, 1190},
			k:         3,
			wantTiers: -1,
			wantTop:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiers, err := Tiers(rated(tt.values...), tt.k)
			if err != nil {
				t.Fatalf("Tiers() error = %v", err)
			}
			switch {
			case tt.wantTiers < 0 && (len(tiers) < 1 || len(tiers) > tt.k):
				t.Fatalf("Tiers() returned %d tiers, want 1..%d", len(tiers), tt.k)
			case tt.wantTiers >= 0 && len(tiers) != tt.wantTiers:
				t.Fatalf("Tiers() returned %d tiers, want %d", len(tiers), tt.wantTiers)
			}
			if len(tiers) == 0 {
				return
			}
			total := 0
			for _, tier := range tiers {
				total += len(tier.Albums)
			}
			if total != len(tt.values) {
				t.Errorf("tiers hold %d albums, want %d", total, len(tt.values))
			}
			if top := tiers[0].Albums[0].Rating.Value; top != maxOf(tt.values) {
				t.Errorf("best album rating = %v, want %v", top, maxOf(tt.values))
			}
			if tt.wantTop >= 0 && len(tiers[0].Albums) != tt.wantTop {
				t.Errorf("top tier has %d albums, want %d", len(tiers[0].Albums), tt.wantTop)
			}
			for i := 1; i < len(tiers); i++ {
				if tiers[i].Max > tiers[i-1].Min {
					t.Errorf("tier %d max %v above tier %d min %v", i, tiers[i].Max, i-1, tiers[i-1].Min)
				}
			}
			for _, tier := range tiers {
				for j := 1; j < len(tier.Albums); j++ {
					if tier.Albums[j].Rating.Value > tier.Albums[j-1].Rating.Value {
						t.Errorf("tier not ordered best first: %v", tier.Albums)
					}
				}
			}
		})
	}
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
