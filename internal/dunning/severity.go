package dunning

import "greendrake/dunning/internal/models"

// SeverityFor classifies an overdue invoice. An upstream severity tag wins over
// the day count: mild is gentle, moderate is firm, severe is urgent.
func SeverityFor(daysOverdue int, tag models.SeverityTag) models.Severity {
	switch tag {
	case models.SeverityTagMild:
		return models.SeverityGentle
	case models.SeverityTagModerate:
		return models.SeverityFirm
	case models.SeverityTagSevere:
		return models.SeverityUrgent
	}
	switch {
	case daysOverdue >= 60:
		return models.SeverityFinal
	case daysOverdue >= 30:
		return models.SeverityUrgent
	case daysOverdue >= 14:
		return models.SeverityFirm
	default:
		return models.SeverityGentle
	}
}
