package booking

import "fmt"

// GeoPoint is a value object for the optional coordinates of the service address.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewGeoPoint validates coordinate ranges.
func NewGeoPoint(lat, lng float64) (GeoPoint, error) {
	if lat < -90 || lat > 90 {
		return GeoPoint{}, fmt.Errorf("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return GeoPoint{}, fmt.Errorf("longitude must be between -180 and 180")
	}
	return GeoPoint{Latitude: lat, Longitude: lng}, nil
}
