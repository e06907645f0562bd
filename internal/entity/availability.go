package entity

import (
	"fmt"
	"strings"
	"time"
)

// OccupancyPolicy decides how overlapping active bookings share a workspace.
type OccupancyPolicy string

const (
	// OccupancyExclusive lets a single active booking hold a window.
	OccupancyExclusive OccupancyPolicy = "exclusive"
	// OccupancyShared lets bookings overlap while summed attendees fit the capacity.
	OccupancyShared OccupancyPolicy = "shared"
)

func ParseOccupancyPolicy(s string) (OccupancyPolicy, error) {
	switch OccupancyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OccupancyExclusive:
		return OccupancyExclusive, nil
	case OccupancyShared:
		return OccupancyShared, nil
	}
	return "", fmt.Errorf("unknown occupancy policy %q", s)
}

// Admits reports whether a request for the given attendees fits next to the
// conflicting bookings already holding the window.
func (p OccupancyPolicy) Admits(capacity, currentAttendees, conflicts, attendees int) bool {
	if attendees > capacity {
		return false
	}
	if p == OccupancyShared {
		return capacity-currentAttendees >= attendees
	}
	return conflicts == 0
}

// Occupancy sums the active bookings in a window.
type Occupancy struct {
	Conflicts int
	Attendees int
}

// OccupancyOf folds bookings that are active and overlap [start, end) into an Occupancy.
func OccupancyOf(bookings []*Booking, start, end time.Time) Occupancy {
	var o Occupancy
	for _, b := range bookings {
		if !b.Status.IsActive() || !b.Overlaps(start, end) {
			continue
		}
		o.Conflicts++
		o.Attendees += b.Attendees
	}
	return o
}

type Availability struct {
	WorkspaceID         int64 `json:"workspace_id"`
	BaseCapacity        int   `json:"base_capacity"`
	CurrentAttendees    int   `json:"current_attendees"`
	AvailableSlots      int   `json:"available_slots"`
	ConflictingBookings int   `json:"conflicting_bookings"`
	IsAvailable         bool  `json:"is_available"`
	RequiresApproval    bool  `json:"requires_approval"`
}
