package maps

import (
	"github.com/paulmach/orb"

	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/geo"
)

// RegionsFromConfig builds the fallback region index from configuration.
func RegionsFromConfig(cfg config.MapsConfig) *geo.Index {
	regions := make([]geo.Region, 0, len(cfg.Regions))
	for _, rc := range cfg.Regions {
		regions = append(regions, toRegion(rc))
	}
	return geo.NewIndex(regions, toRegion(cfg.DefaultRegion))
}

func toRegion(rc config.RegionConfig) geo.Region {
	return geo.Region{
		Name:     rc.Name,
		Centroid: geo.Point{Lat: rc.Lat, Lon: rc.Lon},
		Bound: orb.Bound{
			Min: orb.Point{rc.MinLon, rc.MinLat},
			Max: orb.Point{rc.MaxLon, rc.MaxLat},
		},
		PostalPrefixes: rc.PostalPrefixes,
	}
}
