package elo

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// Rated is an album with its rating in a list.
type Rated struct {
	AlbumID uuid.UUID
	Rating  Rating
}

// Tier is a group of albums with similar ratings.
type Tier struct {
	Albums []Rated // best first
	Min    float64
	Max    float64
}

// ratedObservation wraps a Rated to implement clusters.Observation.
type ratedObservation struct {
	rated  Rated
	coords clusters.Coordinates
}

func (o ratedObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o ratedObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Tiers groups rated albums into at most k tiers with k-means over the
// rating value. Tiers are ordered best first. When there are fewer distinct
// ratings than k, each distinct rating becomes its own tier.
func Tiers(rated []Rated, k int) ([]Tier, error) {
	if len(rated) == 0 || k <= 0 {
		return nil, nil
	}

	distinct := make(map[float64]bool)
	for _, r := range rated {
		distinct[r.Rating.Value] = true
	}
	if len(distinct) <= k {
		return exactTiers(rated), nil
	}

	var obs clusters.Observations
	for _, r := range rated {
		obs = append(obs, ratedObservation{rated: r, coords: clusters.Coordinates{r.Rating.Value}})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, k)
	if err != nil {
		return nil, err
	}

	var tiers []Tier
	for _, c := range result {
		var members []Rated
		for _, o := range c.Observations {
			if ro, ok := o.(ratedObservation); ok {
				members = append(members, ro.rated)
			}
		}
		if len(members) == 0 {
			continue
		}
		tiers = append(tiers, newTier(members))
	}
	slices.SortFunc(tiers, func(a, b Tier) int {
		return cmp.Compare(b.Max, a.Max)
	})
	return tiers, nil
}

func exactTiers(rated []Rated) []Tier {
	groups := make(map[float64][]Rated)
	for _, r := range rated {
		groups[r.Rating.Value] = append(groups[r.Rating.Value], r)
	}
	tiers := make([]Tier, 0, len(groups))
	for _, members := range groups {
		tiers = append(tiers, newTier(members))
	}
	slices.SortFunc(tiers, func(a, b Tier) int {
		return cmp.Compare(b.Max, a.Max)
	})
	return tiers
}

func newTier(members []Rated) Tier {
	slices.SortFunc(members, func(a, b Rated) int {
		if c := cmp.Compare(b.Rating.Value, a.Rating.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.AlbumID.String(), b.AlbumID.String())
	})
	return Tier{
		Albums: members,
		Min:    members[len(members)-1].Rating.Value,
		Max:    members[0].Rating.Value,
	}
}
