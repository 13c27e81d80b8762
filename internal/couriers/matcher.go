package couriers

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/geo"
)

// DefaultMatchRadiusKm is the radius used when an order becomes ready.
const DefaultMatchRadiusKm = 15.0

// Match is the matcher's pick. DistanceKm is nil when the courier has no known location.
type Match struct {
	CourierID  uuid.UUID
	DistanceKm *float64
	Fallback   bool
}

// Nearest picks the closest located candidate within maxDistanceKm. Ties keep
// input order. When nothing is in range but candidates exist, the first
// candidate of the unfiltered list is returned with Fallback set.
func Nearest(candidates []models.CourierProfile, pickup geo.Point, maxDistanceKm float64) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}

	bestIdx := -1
	bestDistance := 0.0
	for i := range candidates {
		c := &candidates[i]
		if !c.HasLocation() {
			continue
		}
		d := pickup.Distance(geo.Point{Lat: *c.CurrentLatitude, Lon: *c.CurrentLongitude})
		if d > maxDistanceKm {
			continue
		}
		if bestIdx == -1 || d < bestDistance {
			bestIdx = i
			bestDistance = d
		}
	}

	if bestIdx >= 0 {
		distance := bestDistance
		return Match{CourierID: candidates[bestIdx].UserID, DistanceKm: &distance}, true
	}

	first := candidates[0]
	match := Match{CourierID: first.UserID, Fallback: true}
	if first.HasLocation() {
		distance := pickup.Distance(geo.Point{Lat: *first.CurrentLatitude, Lon: *first.CurrentLongitude})
		match.DistanceKm = &distance
	}
	return match, true
}
