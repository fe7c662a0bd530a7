package config

import (
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airportmatch/nearestairport/internal/ingester/geo"
)

type radiusHolder struct {
	Radius geo.EarthRadius
}

func decodeRadius(t *testing.T, input map[string]interface{}) (geo.EarthRadius, error) {
	t.Helper()
	var out radiusHolder
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: EarthRadiusHookFunc(),
		Result:     &out,
	})
	require.NoError(t, err)
	err = decoder.Decode(input)
	return out.Radius, err
}

func TestEarthRadiusHookFunc(t *testing.T) {
	tests := map[string]struct {
		input    interface{}
		expected geo.EarthRadius
		wantErr  bool
	}{
		"mean by name":       {input: "mean", expected: geo.MeanEarthRadiusKm},
		"equatorial by name": {input: "Equatorial", expected: geo.EquatorialEarthRadiusKm},
		"numeric string":     {input: "6371.0", expected: geo.MeanEarthRadiusKm},
		"float":              {input: 6378.0, expected: geo.EquatorialEarthRadiusKm},
		"garbage":            {input: "round", wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			radius, err := decodeRadius(t, map[string]interface{}{"radius": tc.input})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, radius)
		})
	}
}
