package conflict

import "roadquest/pkg/model"

func FromBooking(b *model.Booking) Reservation {
	return Reservation{
		ID:         b.ID,
		ResourceID: b.CarID,
		Interval:   Interval{Start: b.StartDate, End: b.EndDate},
		Status:     b.Status,
	}
}

func FromBookings(bookings []*model.Booking) []Reservation {
	out := make([]Reservation, 0, len(bookings))
	for _, b := range bookings {
		if b == nil {
			continue
		}
		out = append(out, FromBooking(b))
	}
	return out
}

// CandidateFor builds the candidate for committing b. The booking's own id is
// excluded so an amendment is never blocked by its previous version.
func CandidateFor(b *model.Booking) Candidate {
	return Candidate{
		ResourceID: b.CarID,
		Interval:   Interval{Start: b.StartDate, End: b.EndDate},
		ExcludeID:  b.ID,
	}
}
