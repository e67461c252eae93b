// Seasonal effects and resource regeneration.
package engine

import (
	"log/slog"
)

// Season constants.
const (
	SeasonSpring = 0
	SeasonSummer = 1
	SeasonAutumn = 2
	SeasonWinter = 3
)

// SeasonName returns a human-readable season name.
func SeasonName(season uint8) string {
	switch season {
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonAutumn:
		return "Autumn"
	case SeasonWinter:
		return "Winter"
	default:
		return "Unknown"
	}
}

// SeasonAt returns the season a tick falls in.
func SeasonAt(tick uint64) uint8 {
	return uint8((tick / TicksPerSimSeason) % 4)
}

// SeasonalRegrowth scales daily regrowth: plants flush in spring and
// barely recover in winter.
func SeasonalRegrowth(season uint8) float64 {
	switch season {
	case SeasonSpring:
		return 1.5
	case SeasonSummer:
		return 1.0
	case SeasonAutumn:
		return 0.75
	case SeasonWinter:
		return 0.25
	default:
		return 1.0
	}
}

// regrowResources restores depleted food, fiber, wood and stone once a day.
func (s *Simulation) regrowResources(tick uint64) {
	season := SeasonAt(tick)
	if season != s.CurrentSeason {
		slog.Info("season changed", "season", SeasonName(season), "time", SimTime(tick))
		s.CurrentSeason = season
	}

	fraction := s.Tuning.World.RegrowFraction * SeasonalRegrowth(season)
	if fraction <= 0 {
		return
	}
	grown := s.WorldMap.Regrow(fraction)
	slog.Debug("resources regrown", "count", grown, "season", SeasonName(season))
}
