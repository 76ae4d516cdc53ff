package audio

import (
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

// MainsFrequency guesses the local mains frequency from the system
// timezone. The synthetic source hums at it so its meters look like a real
// line input. Anything undetermined is 50 Hz.
func MainsFrequency() float64 {
	timezone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return 50
	}
	return MainsFrequencyForTimezone(timezone)
}

// MainsFrequencyForTimezone maps an IANA timezone onto 50 or 60 Hz.
func MainsFrequencyForTimezone(timezone string) float64 {
	if timezone == "" || timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return 50
	}
	countries, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return 50
	}
	country, err := countries.GetCountry(timezone)
	if err != nil {
		return 50
	}
	if hz60Countries[country] {
		return 60
	}
	return 50
}

// Japan is split by region and left at 50 Hz.
var hz60Countries = map[string]bool{
	"United States":       true,
	"Canada":              true,
	"Mexico":              true,
	"Belize":              true,
	"Costa Rica":          true,
	"El Salvador":         true,
	"Guatemala":           true,
	"Honduras":            true,
	"Nicaragua":           true,
	"Panama":              true,
	"Bahamas":             true,
	"Cuba":                true,
	"Dominican Republic":  true,
	"Haiti":               true,
	"Jamaica":             true,
	"Puerto Rico":         true,
	"Trinidad and Tobago": true,
	"Brazil":              true,
	"Colombia":            true,
	"Ecuador":             true,
	"Peru":                true,
	"Venezuela":           true,
	"South Korea":         true,
	"Taiwan":              true,
	"Philippines":         true,
	"Saudi Arabia":        true,
	"Guam":                true,
}
