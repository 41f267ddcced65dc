package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/tidwall/sjson"
)

const WeatherName = "get_weather"

const (
	Celsius    = "celsius"
	Fahrenheit = "fahrenheit"
)

var ErrUnknownLocation = errors.New("unknown location")

type WeatherInput struct {
	Location string `json:"location" jsonschema_description:"The city and state, e.g. San Francisco, CA"`
	Unit     string `json:"unit,omitempty" jsonschema:"enum=celsius,enum=fahrenheit" jsonschema_description:"The temperature unit to use"`
}

type City struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
}

// Cities is the toy geocoder's lookup table.
var Cities = []City{
	{"New York City", "US", 40.7128, -74.0060},
	{"San Francisco", "US", 37.7749, -122.4194},
	{"London", "GB", 51.5074, -0.1278},
	{"Paris", "FR", 48.8566, 2.3522},
	{"Tokyo", "JP", 35.6762, 139.6503},
	{"Berlin", "DE", 52.5200, 13.4050},
	{"Sydney", "AU", -33.8688, 151.2093},
	{"São Paulo", "BR", -23.5505, -46.6333},
}

var aliases = map[string]string{
	"new york":  "New York City",
	"nyc":       "New York City",
	"sf":        "San Francisco",
	"sao paulo": "São Paulo",
}

var conditions = []string{"sunny", "partly cloudy", "cloudy", "light rain", "rain", "windy", "foggy"}

// Geocode resolves a free-form location such as "Tokyo" or
// "San Francisco, CA" against Cities.
func Geocode(location string) (City, error) {
	name := strings.TrimSpace(location)
	if i := strings.Index(name, ","); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if alias, ok := aliases[strings.ToLower(name)]; ok {
		name = alias
	}
	for _, c := range Cities {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return City{}, fmt.Errorf("%w: %q", ErrUnknownLocation, location)
}

func Weather() Definition {
	return Definition{
		Name:        WeatherName,
		Description: "Get the current weather in a given location",
		Parameters:  GenerateSchema[WeatherInput](),
		Handler: func(_ context.Context, args json.RawMessage) (string, error) {
			in, err := decode[WeatherInput](args)
			if err != nil {
				return "", err
			}
			return Forecast(in.Location, in.Unit)
		},
	}
}

// Forecast returns synthetic conditions for a known city as a JSON object.
// The same city always yields the same numbers.
func Forecast(location, unit string) (string, error) {
	switch unit {
	case "":
		unit = Celsius
	case Celsius, Fahrenheit:
	default:
		return "", fmt.Errorf("unsupported unit %q", unit)
	}

	city, err := Geocode(location)
	if err != nil {
		return "", err
	}

	h := fnv.New32a()
	h.Write([]byte(city.Name))
	seed := h.Sum32()

	temp := float64(seed%35) - 5
	if unit == Fahrenheit {
		temp = math.Round((temp*9/5+32)*10) / 10
	}

	out := "{}"
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"location", city.Name},
		{"country", city.Country},
		{"latitude", city.Latitude},
		{"longitude", city.Longitude},
		{"temperature", temp},
		{"unit", unit},
		{"conditions", conditions[(seed/35)%uint32(len(conditions))]},
		{"humidity", 30 + (seed/7)%60},
	} {
		if out, err = sjson.Set(out, kv.path, kv.value); err != nil {
			return "", fmt.Errorf("failed to build forecast: %w", err)
		}
	}
	return out, nil
}
