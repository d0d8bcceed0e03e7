// Package segment holds the immutable road-segment dataset and the spatial
// selection over it.
package segment

import "strings"

// RoadClass is an OSM highway classification tag.
type RoadClass string

// Known road classes.
const (
	Motorway      RoadClass = "motorway"
	MotorwayLink  RoadClass = "motorway_link"
	Trunk         RoadClass = "trunk"
	TrunkLink     RoadClass = "trunk_link"
	Primary       RoadClass = "primary"
	PrimaryLink   RoadClass = "primary_link"
	Secondary     RoadClass = "secondary"
	SecondaryLink RoadClass = "secondary_link"
	Tertiary      RoadClass = "tertiary"
	TertiaryLink  RoadClass = "tertiary_link"
	Residential   RoadClass = "residential"
	Service       RoadClass = "service"
	LivingStreet  RoadClass = "living_street"
	Unclassified  RoadClass = "unclassified"
)

var knownClasses = map[RoadClass]bool{
	Motorway: true, MotorwayLink: true, Trunk: true, TrunkLink: true,
	Primary: true, PrimaryLink: true, Secondary: true, SecondaryLink: true,
	Tertiary: true, TertiaryLink: true, Residential: true, Service: true,
	LivingStreet: true, Unclassified: true,
}

// ParseRoadClass normalizes a highway tag. A blank tag is unclassified; any
// other unrecognized tag is kept verbatim so lookups fall through to defaults.
func ParseRoadClass(s string) RoadClass {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Unclassified
	}
	return RoadClass(s)
}

// Known reports whether c is one of the enumerated classes.
func (c RoadClass) Known() bool {
	return knownClasses[c]
}

// Direction is the traffic direction code relative to the geometry.
type Direction int

// Direction codes.
const (
	WithGeometry    Direction = 1
	AgainstGeometry Direction = 2
	Bidirectional   Direction = 3
)

func (d Direction) String() string {
	switch d {
	case WithGeometry:
		return "with_geometry"
	case AgainstGeometry:
		return "against_geometry"
	case Bidirectional:
		return "bidirectional"
	default:
		return "unknown"
	}
}
