// matchmaker/lobby/params.go
package lobby

import (
	"slices"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/apperr"
)

// Regions a search may target.
const (
	RegionEurope = "Europe"
	RegionAsia   = "Asia"
)

// Game modes (regimes).
const (
	ModeTraining = "training"
	ModeArcade   = "arcade"
	ModeRating   = "rating"
)

var (
	Regions = []string{RegionEurope, RegionAsia}
	Modes   = []string{ModeTraining, ModeArcade, ModeRating}
)

// ParseRegion validates a caller supplied region.
func ParseRegion(region string) (string, error) {
	return parseOneOf("region", region, Regions)
}

// ParseMode validates a caller supplied game mode.
func ParseMode(mode string) (string, error) {
	return parseOneOf("mode", mode, Modes)
}

func parseOneOf(field, value string, allowed []string) (string, error) {
	if value == "" {
		return "", apperr.Invalid(field, apperr.CauseRequired)
	}
	if !slices.Contains(allowed, value) {
		return "", apperr.Invalid(field, apperr.CauseUnsupported)
	}
	return value, nil
}
