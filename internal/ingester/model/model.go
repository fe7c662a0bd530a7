package model

import "fmt"

// AirportRecord is one airport of the reference set. Records are never modified once loaded.
type AirportRecord struct {
	Id        int64
	Name      string
	Latitude  float64
	Longitude float64
	// Empty if the airport has no Wikipedia page
	WikipediaLink string
}

// ReferenceSet is the ordered, read-only collection of airports every user is matched against.
// The position of a record in the slice decides ties: the lower index wins.
type ReferenceSet []AirportRecord

// Links returns the airport -> Wikipedia link pairs of the reference set, skipping airports without a link.
func (r ReferenceSet) Links() []AirportLink {
	links := make([]AirportLink, 0, len(r))
	for _, a := range r {
		if a.WikipediaLink == "" {
			continue
		}
		links = append(links, AirportLink{AirportId: a.Id, WikipediaLink: a.WikipediaLink})
	}
	return links
}

type AirportLink struct {
	AirportId     int64
	WikipediaLink string
}

// UserCoordinate is the location of a user as reported by the location service.
type UserCoordinate struct {
	UserId    int64
	Latitude  float64
	Longitude float64
}

// NearestAssignment is the row persisted for each successfully processed user.
type NearestAssignment struct {
	UserId    int64
	AirportId int64
}

// JobOutcome is the result of processing a single user. A nil Err means success.
type JobOutcome struct {
	UserId     int64
	AirportId  int64
	DistanceKm float64
	Attempts   uint // location service requests made, known for failures only
	Err        error
}

func (o JobOutcome) Succeeded() bool {
	return o.Err == nil
}

func (o JobOutcome) Assignment() NearestAssignment {
	return NearestAssignment{UserId: o.UserId, AirportId: o.AirportId}
}

// JobState tracks a single user job through the pipeline.
//
//	Pending -> InFlight -> Success
//	                    -> Retry -> InFlight
//	                    -> Failed
type JobState int

const (
	JobPending JobState = iota
	JobInFlight
	JobRetry
	JobSuccess
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "PENDING"
	case JobInFlight:
		return "IN_FLIGHT"
	case JobRetry:
		return "RETRY"
	case JobSuccess:
		return "SUCCESS"
	case JobFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("JobState(%d)", int(s))
	}
}

// UserRange is the half open range of user ids [Start, End).
type UserRange struct {
	Start int64
	End   int64
}

func (r UserRange) Len() int64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r UserRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}
