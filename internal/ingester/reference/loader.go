package reference

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/airportmatch/nearestairport/internal/ingester/geo"
	"github.com/airportmatch/nearestairport/internal/ingester/model"
)

const (
	idColumn        = "id"
	nameColumn      = "name"
	latitudeColumn  = "latitude_deg"
	longitudeColumn = "longitude_deg"
	linkColumn      = "wikipedia_link"
)

var requiredColumns = []string{idColumn, nameColumn, latitudeColumn, longitudeColumn}

// LoadFile reads the airport reference set from the csv file at path.
func LoadFile(path string) (model.ReferenceSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	airports, err := Load(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading reference set from %s", path)
	}
	log.Infof("Loaded %d airports from %s", len(airports), path)
	return airports, nil
}

// Load parses a csv with a header row containing at least id, name, latitude_deg and longitude_deg. An optional
// wikipedia_link column is carried onto the records; other columns are ignored. Row order is preserved since it
// decides ties between equidistant airports.
func Load(r io.Reader) (model.ReferenceSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("reference data is empty")
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	airports := model.ReferenceSet{}
	seen := map[int64]int{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}
		airport, err := parseRow(row, columns)
		if err != nil {
			return nil, errors.WithMessagef(err, "line %d", line)
		}
		if prev, ok := seen[airport.Id]; ok {
			return nil, errors.Errorf("line %d: airport id %d already defined on line %d", line, airport.Id, prev)
		}
		seen[airport.Id] = line
		airports = append(airports, airport)
	}
	if len(airports) == 0 {
		return nil, errors.New("reference data contains no airports")
	}
	return airports, nil
}

func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, ok := columns[name]; !ok {
			columns[name] = i
		}
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, errors.Errorf("reference data is missing required column %q", required)
		}
	}
	return columns, nil
}

func parseRow(row []string, columns map[string]int) (model.AirportRecord, error) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	id, err := strconv.ParseInt(field(idColumn), 10, 64)
	if err != nil {
		return model.AirportRecord{}, errors.Errorf("invalid airport id %q", field(idColumn))
	}
	lat, err := strconv.ParseFloat(field(latitudeColumn), 64)
	if err != nil {
		return model.AirportRecord{}, errors.Errorf("airport %d: invalid latitude %q", id, field(latitudeColumn))
	}
	lon, err := strconv.ParseFloat(field(longitudeColumn), 64)
	if err != nil {
		return model.AirportRecord{}, errors.Errorf("airport %d: invalid longitude %q", id, field(longitudeColumn))
	}
	if err := geo.ValidCoordinate(lat, lon); err != nil {
		return model.AirportRecord{}, errors.WithMessagef(err, "airport %d", id)
	}
	return model.AirportRecord{
		Id:            id,
		Name:          field(nameColumn),
		Latitude:      lat,
		Longitude:     lon,
		WikipediaLink: field(linkColumn),
	}, nil
}
