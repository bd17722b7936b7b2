package location

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidCoordinates is returned when coordinates do not describe a
// geometry compatible with the location type
var ErrInvalidCoordinates = shared.NewDomainError("INVALID_COORDINATES", "Coordinates do not match the location type")

// latLng is the {lat, lng} object accepted for single positions
type latLng struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// ParseCoordinates decodes a coordinates blob into a geometry and checks
// it against the location type. Accepted forms are a {lat, lng} object,
// an array of {lat, lng} objects or [lng, lat] pairs, and a GeoJSON
// geometry object.
func ParseCoordinates(raw json.RawMessage, locationType LocationType) (orb.Geometry, GeometryType, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, "", shared.NewDomainError("INVALID_COORDINATES", "Coordinates are required")
	}

	var (
		points []orb.Point
		err    error
	)
	switch raw[0] {
	case '{':
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, "", invalidCoordinates(err.Error())
		}
		if head.Type != "" {
			return parseGeoJSON(raw, locationType)
		}
		var p orb.Point
		p, err = decodePosition(raw)
		points = []orb.Point{p}
	case '[':
		points, err = decodePositions(raw)
	default:
		return nil, "", invalidCoordinates("coordinates must be an object or an array")
	}
	if err != nil {
		return nil, "", err
	}
	return shape(points, locationType)
}

// RepresentativePoint returns the point used for distance computations:
// the point itself, the centroid of an area, or the centroid of a path.
func RepresentativePoint(g orb.Geometry) orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return v
	case nil:
		return orb.Point{}
	}
	c, _ := planar.CentroidArea(g)
	return c
}

// DistanceMeters returns the great-circle distance between two points
func DistanceMeters(a, b orb.Point) float64 {
	return geo.Distance(a, b)
}

// ValidLatLng reports whether the pair lies in the WGS84 range
func ValidLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func shape(points []orb.Point, locationType LocationType) (orb.Geometry, GeometryType, error) {
	switch locationType {
	case LocationTypePoint:
		if len(points) != 1 {
			return nil, "", invalidCoordinates("a point location needs exactly one position")
		}
		return points[0], GeometryPoint, nil
	case LocationTypeSegment, LocationTypeRoute:
		if len(points) < 2 {
			return nil, "", invalidCoordinates("a segment or route needs at least two positions")
		}
		return orb.LineString(points), GeometryLineString, nil
	case LocationTypeArea, LocationTypeRegion:
		ring := orb.Ring(points)
		if len(ring) > 1 && ring.Closed() {
			ring = ring[:len(ring)-1]
		}
		if len(ring) < 3 {
			return nil, "", invalidCoordinates("an area or region needs at least three positions")
		}
		closed := make(orb.Ring, 0, len(ring)+1)
		closed = append(closed, ring...)
		closed = append(closed, ring[0])
		return orb.Polygon{closed}, GeometryPolygon, nil
	}
	return nil, "", shared.NewDomainError("INVALID_LOCATION_TYPE", "Unknown location type")
}

func parseGeoJSON(raw json.RawMessage, locationType LocationType) (orb.Geometry, GeometryType, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, "", invalidCoordinates(err.Error())
	}
	geometry := g.Geometry()
	if geometry == nil {
		return nil, "", invalidCoordinates("geometry has no coordinates")
	}
	if err := checkBounds(geometry); err != nil {
		return nil, "", err
	}

	var geometryType GeometryType
	switch geometry.(type) {
	case orb.Point:
		geometryType = GeometryPoint
	case orb.LineString:
		geometryType = GeometryLineString
	case orb.Polygon:
		geometryType = GeometryPolygon
	default:
		return nil, "", invalidCoordinates("unsupported geometry type " + geometry.GeoJSONType())
	}

	if !compatible(locationType, geometryType) {
		return nil, "", invalidCoordinates(fmt.Sprintf("%s geometry is not valid for a %s location", geometryType, locationType))
	}
	return geometry, geometryType, nil
}

func compatible(locationType LocationType, geometryType GeometryType) bool {
	switch locationType {
	case LocationTypePoint:
		return geometryType == GeometryPoint
	case LocationTypeSegment, LocationTypeRoute:
		return geometryType == GeometryLineString
	case LocationTypeArea, LocationTypeRegion:
		return geometryType == GeometryPolygon
	}
	return false
}

func decodePositions(raw json.RawMessage) ([]orb.Point, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalidCoordinates(err.Error())
	}
	points := make([]orb.Point, 0, len(items))
	for _, item := range items {
		p, err := decodePosition(item)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// decodePosition accepts {lat, lng} or [lng, lat]
func decodePosition(raw json.RawMessage) (orb.Point, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) < 2 {
			return orb.Point{}, invalidCoordinates("positions must be [lng, lat] pairs")
		}
		return checkedPoint(pair[1], pair[0])
	}
	var ll latLng
	if err := json.Unmarshal(raw, &ll); err != nil {
		return orb.Point{}, invalidCoordinates(err.Error())
	}
	if ll.Lat == nil || ll.Lng == nil {
		return orb.Point{}, invalidCoordinates("positions need both lat and lng")
	}
	return checkedPoint(*ll.Lat, *ll.Lng)
}

func checkedPoint(lat, lng float64) (orb.Point, error) {
	if !ValidLatLng(lat, lng) {
		return orb.Point{}, invalidCoordinates(fmt.Sprintf("position (%g, %g) is out of range", lat, lng))
	}
	return orb.Point{lng, lat}, nil
}

func checkBounds(g orb.Geometry) error {
	b := g.Bound()
	if !ValidLatLng(b.Min.Lat(), b.Min.Lon()) || !ValidLatLng(b.Max.Lat(), b.Max.Lon()) {
		return invalidCoordinates("geometry is out of range")
	}
	return nil
}

func invalidCoordinates(reason string) error {
	return shared.NewDomainError(ErrInvalidCoordinates.Code, "Invalid coordinates: "+reason)
}
