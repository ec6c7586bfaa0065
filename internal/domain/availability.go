// internal/domain/availability.go
package domain

// Availability is a provider's readiness to take a consultation.
type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilityBusy      Availability = "busy"
	AvailabilityOffline   Availability = "offline"
)

// Valid reports whether a is a known availability value.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityOffline:
		return true
	}
	return false
}
