package model

// WeatherCondition is a normalized weather state on an ordinal severity
// scale. Rules compare conditions by severity, not by name, so provider
// vocabularies must be mapped onto these values at the client boundary.
type WeatherCondition string

const (
	WeatherClear        WeatherCondition = "clear"
	WeatherPartlyCloudy WeatherCondition = "partly_cloudy"
	WeatherCloudy       WeatherCondition = "cloudy"
	WeatherFog          WeatherCondition = "fog"
	WeatherDrizzle      WeatherCondition = "drizzle"
	WeatherRain         WeatherCondition = "rain"
	WeatherHeavyRain    WeatherCondition = "heavy_rain"
	WeatherThunderstorm WeatherCondition = "thunderstorm"
	WeatherSnow         WeatherCondition = "snow"
)

var weatherSeverity = map[WeatherCondition]int{
	WeatherClear:        0,
	WeatherPartlyCloudy: 1,
	WeatherCloudy:       2,
	WeatherFog:          3,
	WeatherDrizzle:      4,
	WeatherRain:         5,
	WeatherHeavyRain:    6,
	WeatherThunderstorm: 7,
	WeatherSnow:         8,
}

// Severity returns the ordinal severity of the condition. Unknown
// conditions rank below clear so they can never trigger a surge.
func (w WeatherCondition) Severity() int {
	if s, ok := weatherSeverity[w]; ok {
		return s
	}
	return -1
}

// Known reports whether the condition is part of the normalized scale.
func (w WeatherCondition) Known() bool {
	_, ok := weatherSeverity[w]
	return ok
}

// WorseThan reports whether w is strictly more severe than other.
func (w WeatherCondition) WorseThan(other WeatherCondition) bool {
	return w.Known() && w.Severity() > other.Severity()
}
