package database

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/lysyi3m/signal-comb/app/signals"
)

// EarthRadiusMeters is the IUGG mean Earth radius.
const EarthRadiusMeters = 6371008.8

type boundingBox struct {
	minLat, maxLat float64
	minLon, maxLon float64
	lonBounded     bool
}

// boundsAround returns a lat/lon box containing every point within radius
// of center. Longitude is left unbounded when the box wraps the antimeridian
// or covers a pole.
func boundsAround(center signals.Point, radiusMeters float64) boundingBox {
	ll := s2.LatLngFromDegrees(center.Lat, center.Lon)
	angle := s1.Angle(radiusMeters / EarthRadiusMeters)
	rect := s2.CapFromCenterAngle(s2.PointFromLatLng(ll), angle).RectBound()

	box := boundingBox{
		minLat: rect.Lo().Lat.Degrees(),
		maxLat: rect.Hi().Lat.Degrees(),
	}
	if !rect.Lng.IsFull() && !rect.Lng.IsInverted() {
		box.lonBounded = true
		box.minLon = rect.Lo().Lng.Degrees()
		box.maxLon = rect.Hi().Lng.Degrees()
	}

	return box
}

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(a, b signals.Point) float64 {
	from := s2.LatLngFromDegrees(a.Lat, a.Lon)
	to := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return from.Distance(to).Radians() * EarthRadiusMeters
}
