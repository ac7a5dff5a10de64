// Package mapping describes every raw field an Ambient Weather station sends
// and how it lands in the published document and the discovery announcements.
package mapping

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/klagroix/ambient-weather-to-mqtt/internal/document"
	"github.com/klagroix/ambient-weather-to-mqtt/internal/units"
)

const (
	KeyMAC         = "mac"
	KeyPassKey     = "PASSKEY"
	KeyStationType = "stationtype"

	PathStationMAC  = "station.mac"
	PathStationType = "station.type"
)

type ValueKind uint8

const (
	// Rounded float, optionally converted.
	KindFloat ValueKind = iota
	// Integer, fractional part truncated.
	KindInt
	// Battery code rendered as Normal/Low/Unknown.
	KindBattery
)

// Output is one document insertion produced from a raw value.
type Output struct {
	Path    string
	Kind    ValueKind
	Convert func(float64) float64
}

// Sensor is one discovery announcement. Path is both the document path the
// value template points at and the unique id suffix.
type Sensor struct {
	Name        string
	Path        string
	Unit        string
	DeviceClass string
	Icon        string
	StateClass  string
}

func (s Sensor) ValueTemplate() string {
	return "{{ value_json." + s.Path + " }}"
}

type Field struct {
	Key     string
	Sensors []Sensor
	Outputs []Output
}

// Values parses raw once and returns the scalar for every output, in order.
func (f Field) Values(raw string, precision int) ([]document.Scalar, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid number %q: %w", f.Key, raw, err)
	}
	if !finite(v) {
		return nil, fmt.Errorf("%s: invalid number %q: not finite", f.Key, raw)
	}
	out := make([]document.Scalar, 0, len(f.Outputs))
	for _, o := range f.Outputs {
		switch o.Kind {
		case KindInt, KindBattery:
			if t := math.Trunc(v); t < math.MinInt64 || t >= math.MaxInt64 {
				return nil, fmt.Errorf("%s: invalid number %q: out of integer range", f.Key, raw)
			}
			n := units.Truncate(v)
			if o.Kind == KindInt {
				out = append(out, document.Int(n))
			} else {
				out = append(out, document.String(units.BatteryStatus(n)))
			}
		default:
			x := v
			if o.Convert != nil {
				x = o.Convert(v)
			}
			x = units.Round(x, precision)
			// Conversion or rounding can overflow huge inputs.
			if !finite(x) {
				return nil, fmt.Errorf("%s: invalid number %q: %s out of range", f.Key, raw, o.Path)
			}
			out = append(out, document.Float(x))
		}
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Apply inserts every output of f for raw into doc.
func (f Field) Apply(doc *document.Document, raw string, precision int) error {
	values, err := f.Values(raw, precision)
	if err != nil {
		return err
	}
	for i, o := range f.Outputs {
		if err := doc.Insert(o.Path, values[i]); err != nil {
			return fmt.Errorf("%s: %w", f.Key, err)
		}
	}
	return nil
}

const (
	iconBattery = "mdi:battery"
	iconCompass = "mdi:compass"
	iconWind    = "mdi:weather-windy"
	iconWater   = "mdi:water"
	iconSun     = "mdi:white-balance-sunny"
)

// Fields is the full table of recognized raw keys, in a stable order.
var Fields = []Field{
	battery("battout", "Outdoor Battery", "station.battery.outdoor"),
	battery("batt_co2", "CO2 Battery", "station.battery.co2"),
	humidity("humidityin", "Indoor Humidity", "humidity.indoor.percentage"),
	humidity("humidity", "Outdoor Humidity", "humidity.outdoor.percentage"),
	temperature("tempinf", "Indoor Temperature", "temperature.indoor"),
	temperature("tempf", "Outdoor Temperature", "temperature.outdoor"),
	pressure("baromrelin", "Relative Pressure", "pressure.relative"),
	pressure("baromabsin", "Absolute Pressure", "pressure.absolute"),
	{
		Key:     "winddir",
		Sensors: []Sensor{{Name: "Wind Direction", Path: "wind.direction.degrees", Unit: "°", Icon: iconCompass}},
		Outputs: []Output{{Path: "wind.direction.degrees", Kind: KindInt}},
	},
	wind("windspeedmph", "Wind Speed", "wind.speed"),
	wind("windgustmph", "Wind Gust", "wind.gust"),
	wind("maxdailygust", "Wind Max. Daily Gust", "wind.daily.gust"),
	rain("hourlyrainin", "Hourly Rain", "rain.hourly", ""),
	rain("eventrainin", "Event Rain", "rain.event", ""),
	rain("dailyrainin", "Daily Rain", "rain.daily", ""),
	rain("weeklyrainin", "Weekly Rain", "rain.weekly", ""),
	rain("monthlyrainin", "Monthly Rain", "rain.monthly", ""),
	rain("totalrainin", "Total Rain", "rain.total", "total"),
	{
		Key: "solarradiation",
		Sensors: []Sensor{
			{Name: "Solar Radiation (W/m²)", Path: "solarradiation.wm2", Unit: "W/m²", Icon: iconSun},
			{Name: "Solar Radiation (lux)", Path: "solarradiation.lux", Unit: "lux", Icon: iconSun},
		},
		Outputs: []Output{
			{Path: "solarradiation.wm2"},
			{Path: "solarradiation.lux", Convert: units.WM2ToLux},
		},
	},
	{
		Key:     "uv",
		Sensors: []Sensor{{Name: "UV Index", Path: "uv.index", Unit: "Index", Icon: iconSun}},
		Outputs: []Output{{Path: "uv.index", Kind: KindInt}},
	},
}

var byKey = func() map[string]Field {
	m := make(map[string]Field, len(Fields))
	for _, f := range Fields {
		m[f.Key] = f
	}
	return m
}()

// Lookup returns the field for a raw key. Identity keys are not fields.
func Lookup(key string) (Field, bool) {
	f, ok := byKey[key]
	return f, ok
}

func battery(key, name, path string) Field {
	return Field{
		Key:     key,
		Sensors: []Sensor{{Name: name, Path: path, DeviceClass: "battery", Icon: iconBattery}},
		Outputs: []Output{{Path: path, Kind: KindBattery}},
	}
}

func humidity(key, name, path string) Field {
	return Field{
		Key:     key,
		Sensors: []Sensor{{Name: name, Path: path, Unit: "%", DeviceClass: "humidity"}},
		Outputs: []Output{{Path: path, Kind: KindInt}},
	}
}

// Temperature is announced once, in °C; the consumer converts units itself.
func temperature(key, name, base string) Field {
	return Field{
		Key:     key,
		Sensors: []Sensor{{Name: name, Path: base + ".celsius", Unit: "°C", DeviceClass: "temperature"}},
		Outputs: []Output{
			{Path: base + ".fahrenheit"},
			{Path: base + ".celsius", Convert: units.FahrenheitToCelsius},
		},
	}
}

// Pressure is announced once, in mmHg.
func pressure(key, name, base string) Field {
	return Field{
		Key:     key,
		Sensors: []Sensor{{Name: name, Path: base + ".mmhg", Unit: "mmHg", DeviceClass: "pressure"}},
		Outputs: []Output{
			{Path: base + ".inhg"},
			{Path: base + ".mmhg", Convert: units.InchesToMillimeters},
			{Path: base + ".hpa", Convert: units.InHgToHPa},
		},
	}
}

// Wind has no native unit conversion downstream, so every unit is announced.
func wind(key, name, base string) Field {
	variants := []struct {
		suffix, label string
		convert       func(float64) float64
	}{
		{"mph", "mph", nil},
		{"kph", "kph", units.MPHToKPH},
		{"mps", "m/s", units.MPHToMPS},
		{"ftps", "ft/s", units.MPHToFTPS},
		{"knots", "knots", units.MPHToKnots},
	}
	f := Field{Key: key}
	for _, v := range variants {
		path := base + "." + v.suffix
		f.Sensors = append(f.Sensors, Sensor{
			Name: fmt.Sprintf("%s (%s)", name, v.label),
			Path: path,
			Unit: v.label,
			Icon: iconWind,
		})
		f.Outputs = append(f.Outputs, Output{Path: path, Convert: v.convert})
	}
	return f
}

func rain(key, name, base, stateClass string) Field {
	return Field{
		Key: key,
		Sensors: []Sensor{
			{Name: name + " (in)", Path: base + ".in", Unit: "in", Icon: iconWater, StateClass: stateClass},
			{Name: name + " (mm)", Path: base + ".mm", Unit: "mm", Icon: iconWater, StateClass: stateClass},
		},
		Outputs: []Output{
			{Path: base + ".in"},
			{Path: base + ".mm", Convert: units.InchesToMillimeters},
		},
	}
}

// Validate checks that the table cannot produce conflicting document paths
// and that every announced sensor points at a path its field writes.
func Validate(fields []Field) error {
	doc := document.New()
	seenKeys := make(map[string]bool, len(fields))
	seenPaths := make(map[string]string)
	for _, f := range fields {
		if f.Key == KeyMAC || f.Key == KeyPassKey || f.Key == KeyStationType {
			return fmt.Errorf("field %q shadows a station identity key", f.Key)
		}
		if seenKeys[f.Key] {
			return fmt.Errorf("duplicate field %q", f.Key)
		}
		seenKeys[f.Key] = true

		written := make(map[string]bool, len(f.Outputs))
		for _, o := range f.Outputs {
			if owner, ok := seenPaths[o.Path]; ok {
				return fmt.Errorf("field %q: path %q already written by %q", f.Key, o.Path, owner)
			}
			seenPaths[o.Path] = f.Key
			if err := doc.Insert(o.Path, document.Int(0)); err != nil {
				return fmt.Errorf("field %q: %w", f.Key, err)
			}
			written[o.Path] = true
		}
		for _, s := range f.Sensors {
			if !written[s.Path] {
				return fmt.Errorf("field %q: sensor %q points at unwritten path %q", f.Key, s.Name, s.Path)
			}
		}
	}
	for _, p := range []string{PathStationMAC, PathStationType} {
		if err := doc.Insert(p, document.String("")); err != nil {
			return fmt.Errorf("identity path %q: %w", p, err)
		}
	}
	return nil
}

func init() {
	if err := Validate(Fields); err != nil {
		panic("mapping: " + err.Error())
	}
}
