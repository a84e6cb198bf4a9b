// Package regions maps a client-reported IANA timezone to the hosting
// region that should place the browser session closest to the caller.
//
// The mapping is a heuristic: exact knowledge of the caller's location is
// unavailable, so the requirement is a reasonable region, not an optimal
// one. Ties and unknown inputs resolve to the default region.
package regions

import (
	"strings"
	"time"

	"github.com/haasonsaas/operator/pkg/models"
)

// Default is the fallback region used for unknown or missing timezones.
const Default = models.RegionUSWest

// exactMatches maps well-known city zones directly to a region.
var exactMatches = map[string]models.Region{
	"America/New_York":    models.RegionUSEast,
	"America/Detroit":     models.RegionUSEast,
	"America/Toronto":     models.RegionUSEast,
	"America/Montreal":    models.RegionUSEast,
	"America/Chicago":     models.RegionUSEast,
	"America/Los_Angeles": models.RegionUSWest,
	"America/Vancouver":   models.RegionUSWest,
	"America/Phoenix":     models.RegionUSWest,
	"America/Denver":      models.RegionUSWest,
	"Europe/London":       models.RegionEUCentral,
	"Europe/Paris":        models.RegionEUCentral,
	"Europe/Berlin":       models.RegionEUCentral,
	"Europe/Madrid":       models.RegionEUCentral,
	"Europe/Rome":         models.RegionEUCentral,
	"Europe/Amsterdam":    models.RegionEUCentral,
	"Asia/Tokyo":          models.RegionAPSoutheast,
	"Asia/Seoul":          models.RegionAPSoutheast,
	"Asia/Shanghai":       models.RegionAPSoutheast,
	"Asia/Singapore":      models.RegionAPSoutheast,
	"Asia/Hong_Kong":      models.RegionAPSoutheast,
	"Australia/Sydney":    models.RegionAPSoutheast,
	"Australia/Melbourne": models.RegionAPSoutheast,
}

// continentMatches maps the prefix before the first '/' to a region when no
// exact city match exists.
var continentMatches = map[string]models.Region{
	"America":    Default,
	"Pacific":    Default,
	"Europe":     models.RegionEUCentral,
	"Africa":     models.RegionEUCentral,
	"Atlantic":   models.RegionEUCentral,
	"Asia":       models.RegionAPSoutheast,
	"Australia":  models.RegionAPSoutheast,
	"Indian":     models.RegionAPSoutheast,
	"Antarctica": Default,
}

// offsetRange maps a closed range of UTC offsets, in fractional hours, to a
// region. The ranges are disjoint and cover the full [-24, +24] span.
type offsetRange struct {
	min, max float64
	region   models.Region
}

var offsetRanges = []offsetRange{
	{min: -24, max: -6, region: models.RegionUSWest},
	{min: -6, max: -2, region: models.RegionUSEast},
	{min: -2, max: 4, region: models.RegionEUCentral},
	{min: 4, max: 24, region: models.RegionAPSoutheast},
}

// Select returns the hosting region for the given IANA timezone name.
// It is total: any unknown, malformed, or empty input yields the default
// region. Offsets are compared as fractional hours, so half-hour zones
// like UTC+5:30 land in the range containing 5.5.
func Select(timezone string) models.Region {
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return Default
	}

	if region, ok := exactMatches[timezone]; ok {
		return region
	}

	if idx := strings.Index(timezone, "/"); idx > 0 {
		if region, ok := continentMatches[timezone[:idx]]; ok {
			return region
		}
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Default
	}
	_, offsetSeconds := time.Now().In(loc).Zone()
	offset := float64(offsetSeconds) / 3600

	for i, r := range offsetRanges {
		// The first range is closed on both ends; later ranges share
		// their lower bound with the previous upper bound.
		if i == 0 {
			if offset >= r.min && offset <= r.max {
				return r.region
			}
			continue
		}
		if offset > r.min && offset <= r.max {
			return r.region
		}
	}
	return Default
}
