package query

// TrackingMode controls whether materialized entities are registered with the
// session for change detection. The zero value is NoTracking.
type TrackingMode int

const (
	// NoTracking returns detached copies; mutations are ignored on persist.
	NoTracking TrackingMode = iota
	// TrackAll registers returned entities; mutations are written on persist.
	TrackAll
)

func (m TrackingMode) String() string {
	switch m {
	case NoTracking:
		return "no-tracking"
	case TrackAll:
		return "track-all"
	default:
		return "unknown"
	}
}
