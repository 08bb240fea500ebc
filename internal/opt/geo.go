package opt

import (
	"math"

	"fairroute/internal/model"
)

// Footprint returns the centroid of the orders that have coordinates and the
// largest haversine distance from that centroid to any of them. Orders without
// coordinates are ignored; if none have any, the centroid is nil.
func Footprint(orders []model.Order) (*model.GeoPoint, float64) {
	var sumLat, sumLng float64
	n := 0
	for _, o := range orders {
		if o.Coordinates == nil {
			continue
		}
		sumLat += o.Coordinates.Lat
		sumLng += o.Coordinates.Lng
		n++
	}
	if n == 0 {
		return nil, 0
	}
	c := &model.GeoPoint{Lat: sumLat / float64(n), Lng: sumLng / float64(n)}
	span := 0.0
	for _, o := range orders {
		if o.Coordinates == nil {
			continue
		}
		if d := haversineMeters(c.Lat, c.Lng, o.Coordinates.Lat, o.Coordinates.Lng); d > span {
			span = d
		}
	}
	return c, span
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
