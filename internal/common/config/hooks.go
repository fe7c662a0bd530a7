package config

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/airportmatch/nearestairport/internal/ingester/geo"
)

var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		EarthRadiusHookFunc(),
	)),
}

// EarthRadiusHookFunc allows the earth radius to be configured either by name ("mean", "equatorial") or as a
// number of kilometres.
func EarthRadiusHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// check that src and target types are valid
		if f.Kind() != reflect.String || t != reflect.TypeOf(geo.EarthRadius(0)) {
			return data, nil
		}
		return geo.ParseEarthRadius(data.(string))
	}
}
