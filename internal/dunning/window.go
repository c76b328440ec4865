package dunning

import "time"

// InSendWindow reports whether now's hour is within [startHour, endHour).
func InSendWindow(now time.Time, startHour, endHour int) bool {
	h := now.Hour()
	return h >= startHour && h < endHour
}

// NextWindowStart returns today at startHour if that is still ahead of now,
// otherwise tomorrow at startHour, in now's location.
func NextWindowStart(now time.Time, startHour int) time.Time {
	y, m, d := now.Date()
	start := time.Date(y, m, d, startHour, 0, 0, 0, now.Location())
	if start.After(now) {
		return start
	}
	return time.Date(y, m, d+1, startHour, 0, 0, 0, now.Location())
}

// DedupeKey identifies one (invoice, channel, template, local day) send.
func DedupeKey(invoiceID, channel, template string, day time.Time) string {
	return "dunning:" + invoiceID + ":" + channel + ":" + template + ":" + day.Format("2006-01-02")
}
