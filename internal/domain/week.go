package domain

import "time"

// Week is the Monday-start seven day window [Start, End] of calendar dates.
type Week struct {
	Start string
	End   string
}

func WeekOf(ref time.Time) Week {
	offset := (int(ref.Weekday()) + 6) % 7
	monday := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location()).AddDate(0, 0, -offset)
	return Week{
		Start: monday.Format(DateLayout),
		End:   monday.AddDate(0, 0, 6).Format(DateLayout),
	}
}

// Contains compares ISO dates lexically, which matches calendar order.
func (w Week) Contains(date string) bool {
	return date >= w.Start && date <= w.End
}

func (w Week) Days() []string {
	start, err := ParseDate(w.Start)
	if err != nil {
		return nil
	}
	out := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		out = append(out, start.AddDate(0, 0, i).Format(DateLayout))
	}
	return out
}
