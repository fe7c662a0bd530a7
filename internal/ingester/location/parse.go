package location

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/airportmatch/nearestairport/internal/ingester/geo"
	"github.com/airportmatch/nearestairport/internal/ingester/model"
)

// The location service wraps numbers as DynamoDB number attributes:
//
//	{"data": {"latitude": {"N": "51.47"}, "longitude": {"N": "-0.46"}}}
type locationResponse struct {
	Data *struct {
		Latitude  *numberAttribute `json:"latitude"`
		Longitude *numberAttribute `json:"longitude"`
	} `json:"data"`
}

type numberAttribute struct {
	N *string `json:"N"`
}

// ParseLocation extracts the coordinates of userId from a location service response body.
// Out of range coordinates are rejected here so they never reach the distance calculation.
func ParseLocation(userId int64, body []byte) (model.UserCoordinate, error) {
	var resp locationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.UserCoordinate{}, errors.WithMessage(err, "malformed location payload")
	}
	if resp.Data == nil {
		return model.UserCoordinate{}, errors.New("location payload has no data field")
	}
	lat, err := parseNumber("latitude", resp.Data.Latitude)
	if err != nil {
		return model.UserCoordinate{}, err
	}
	lon, err := parseNumber("longitude", resp.Data.Longitude)
	if err != nil {
		return model.UserCoordinate{}, err
	}
	if err := geo.ValidCoordinate(lat, lon); err != nil {
		return model.UserCoordinate{}, err
	}
	return model.UserCoordinate{UserId: userId, Latitude: lat, Longitude: lon}, nil
}

func parseNumber(field string, attr *numberAttribute) (float64, error) {
	if attr == nil || attr.N == nil {
		return 0, errors.Errorf("location payload has no numeric %s", field)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*attr.N), 64)
	if err != nil {
		return 0, errors.Errorf("location payload has invalid %s %q", field, *attr.N)
	}
	return v, nil
}
