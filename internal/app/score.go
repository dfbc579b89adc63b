package app

// scaledScore maps a raw section score onto the familiar 200-800 band with a
// linear placeholder curve; swap in a conversion table when one is sourced.
func scaledScore(raw, total int) int {
	if total <= 0 {
		return 200
	}
	if raw < 0 {
		raw = 0
	}
	if raw > total {
		raw = total
	}
	scaled := 200.0 + float64(raw)/float64(total)*600.0
	return int(scaled + 0.5)
}
