package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/airportmatch/nearestairport/internal/ingester/model"
)

// EarthRadius is the radius, in kilometres, of the sphere distances are computed on.
type EarthRadius float64

const (
	// MeanEarthRadiusKm is the IUGG mean radius and the radius used unless configured otherwise.
	MeanEarthRadiusKm EarthRadius = 6371.0
	// EquatorialEarthRadiusKm reports distances roughly 0.1% larger than MeanEarthRadiusKm. Since the radius scales
	// every distance equally, the choice never changes which airport is nearest.
	EquatorialEarthRadiusKm EarthRadius = 6378.0
)

// ParseEarthRadius accepts "mean", "equatorial" or a positive number of kilometres.
func ParseEarthRadius(s string) (EarthRadius, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean":
		return MeanEarthRadiusKm, nil
	case "equatorial":
		return EquatorialEarthRadiusKm, nil
	}
	km, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Errorf("invalid earth radius %q: expected mean, equatorial or a number of kilometres", s)
	}
	if km <= 0 || math.IsNaN(km) || math.IsInf(km, 0) {
		return 0, errors.Errorf("invalid earth radius %q: must be positive", s)
	}
	return EarthRadius(km), nil
}

// Haversine returns the great-circle distance between two points given in degrees on a sphere of the given radius.
func Haversine(lat1, lon1, lat2, lon2 float64, radius EarthRadius) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)
	a := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda
	// rounding can push a fractionally outside [0, 1] for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return float64(radius) * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ValidCoordinate rejects coordinates that cannot be placed on the globe.
func ValidCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return errors.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return errors.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	return nil
}

// Engine finds the nearest airport of a fixed reference set. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	airports model.ReferenceSet
	radius   EarthRadius
}

func NewEngine(airports model.ReferenceSet, radius EarthRadius) *Engine {
	return &Engine{airports: airports, radius: radius}
}

func (e *Engine) Radius() EarthRadius {
	return e.radius
}

// Nearest returns the airport closest to (lat, lon) and its distance in kilometres. When two airports are exactly
// equidistant the one appearing first in the reference set is returned. ok is false only for an empty reference set.
func (e *Engine) Nearest(lat, lon float64) (airport model.AirportRecord, distanceKm float64, ok bool) {
	best := -1
	bestDistance := math.Inf(1)
	for i := range e.airports {
		d := Haversine(lat, lon, e.airports[i].Latitude, e.airports[i].Longitude, e.radius)
		if d < bestDistance {
			best = i
			bestDistance = d
		}
	}
	if best < 0 {
		return model.AirportRecord{}, 0, false
	}
	return e.airports[best], bestDistance, true
}

