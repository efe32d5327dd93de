package domain

import (
	"sort"
)

type SoonestOutcome int

const (
	// SoonestNoAvailability: no window falls after the reference date.
	SoonestNoAvailability SoonestOutcome = iota
	// SoonestFullyBooked: windows exist but reservations cover all of them.
	SoonestFullyBooked
	SoonestFound
)

func (o SoonestOutcome) String() string {
	switch o {
	case SoonestFound:
		return "found"
	case SoonestFullyBooked:
		return "fully_booked"
	default:
		return "no_availability"
	}
}

// Soonest is the result of ComputeSoonestAvailability. Slot is only set when
// Outcome is SoonestFound; its StartTime is advanced to the first open instant.
type Soonest struct {
	Outcome SoonestOutcome
	Slot    Availability
}

type span struct {
	start TimeOfDay
	end   TimeOfDay
}

// ComputeSoonestAvailability returns the earliest open instant across the
// windows dated strictly after referenceDate, net of every reservation on the
// window's date. Records that fail to parse are ignored.
func ComputeSoonestAvailability(availability []Availability, reservations []Reservation, referenceDate string) Soonest {
	type candidate struct {
		avail Availability
		span
	}

	candidates := make([]candidate, 0, len(availability))
	for _, a := range availability {
		if a.Date <= referenceDate {
			continue
		}
		if _, err := ParseDate(a.Date); err != nil {
			continue
		}
		s, e, err := a.Window()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{avail: a, span: span{start: s, end: e}})
	}
	if len(candidates) == 0 {
		return Soonest{Outcome: SoonestNoAvailability}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].avail.Date != candidates[j].avail.Date {
			return candidates[i].avail.Date < candidates[j].avail.Date
		}
		return candidates[i].start < candidates[j].start
	})

	busy := make(map[string][]span)
	for _, r := range reservations {
		s, e, err := r.Window()
		if err != nil {
			continue
		}
		busy[r.Date] = append(busy[r.Date], span{start: s, end: e})
	}
	for date := range busy {
		spans := busy[date]
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	}

	for _, c := range candidates {
		earliest := c.start
		for _, b := range busy[c.avail.Date] {
			if b.start <= earliest && earliest < b.end {
				earliest = b.end
			}
		}
		if earliest < c.end {
			slot := c.avail
			slot.StartTime = earliest.String()
			return Soonest{Outcome: SoonestFound, Slot: slot}
		}
	}
	return Soonest{Outcome: SoonestFullyBooked}
}
