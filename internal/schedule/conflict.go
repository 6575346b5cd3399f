package schedule

// Filter keeps the candidates that overlap none of the booked intervals and
// reports how many were dropped. Candidate order is preserved.
func Filter(candidates, booked []Interval) ([]Interval, int) {
	accepted := make([]Interval, 0, len(candidates))
	skipped := 0

	for _, c := range candidates {
		if overlapsAny(c, booked) {
			skipped++
			continue
		}
		accepted = append(accepted, c)
	}

	return accepted, skipped
}

func overlapsAny(c Interval, booked []Interval) bool {
	for _, b := range booked {
		if c.Overlaps(b) {
			return true
		}
	}

	return false
}
