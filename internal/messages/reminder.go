// Package messages turns structured reminder data into channel text. Everything
// here is pure: no I/O, no clock.
package messages

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"greendrake/dunning/internal/models"
)

// ReminderData is everything a channel needs to render one reminder.
type ReminderData struct {
	CustomerName  string
	InvoiceNumber string
	AmountCents   int64
	DueAt         time.Time
	DaysOverdue   int
	Severity      models.Severity
	PaymentURL    string
	OrgName       string
	OrgPhone      string
	Locale        string // "nl" or "en"
}

// WhatsApp template names, chosen by days overdue.
const (
	TemplateGentle = "invoice_reminder_gentle"
	TemplateFirm   = "invoice_reminder_firm"
	TemplateUrgent = "invoice_reminder_urgent"
	TemplateFinal  = "invoice_reminder_final"
)

// TemplateNameForDaysOverdue picks the pre-approved WhatsApp template for the given age.
func TemplateNameForDaysOverdue(days int) string {
	switch {
	case days < 7:
		return TemplateGentle
	case days < 30:
		return TemplateFirm
	case days < 60:
		return TemplateUrgent
	default:
		return TemplateFinal
	}
}

// BuildTemplateParams returns the ordered body parameters for a WhatsApp template:
// customer name, invoice number, amount, due date, payment link (or org phone), org name.
func BuildTemplateParams(d ReminderData) []string {
	contact := d.PaymentURL
	if contact == "" {
		contact = d.OrgPhone
	}
	if contact == "" {
		contact = "-"
	}
	return []string{
		nonEmpty(d.CustomerName, "klant"),
		d.InvoiceNumber,
		FormatAmount(d.AmountCents, d.Locale),
		FormatDate(d.DueAt, d.Locale),
		contact,
		d.OrgName,
	}
}

// Subject returns the email subject line for a reminder.
func Subject(d ReminderData) string {
	if isEnglish(d.Locale) {
		if d.Severity == models.SeverityFinal {
			return fmt.Sprintf("Final reminder: invoice %s", d.InvoiceNumber)
		}
		return fmt.Sprintf("Payment reminder: invoice %s", d.InvoiceNumber)
	}
	if d.Severity == models.SeverityFinal {
		return fmt.Sprintf("Laatste herinnering: factuur %s", d.InvoiceNumber)
	}
	return fmt.Sprintf("Betalingsherinnering: factuur %s", d.InvoiceNumber)
}

// GenerateReminderMessage renders the plain-text reminder body. Paragraphs are
// separated by a blank line.
func GenerateReminderMessage(d ReminderData) string {
	en := isEnglish(d.Locale)
	amount := FormatAmount(d.AmountCents, d.Locale)
	due := FormatDate(d.DueAt, d.Locale)

	var paragraphs []string
	if en {
		paragraphs = append(paragraphs, fmt.Sprintf("Dear %s,", nonEmpty(d.CustomerName, "customer")))
	} else {
		paragraphs = append(paragraphs, fmt.Sprintf("Beste %s,", nonEmpty(d.CustomerName, "klant")))
	}
	paragraphs = append(paragraphs, openingLine(d.Severity, en, d.InvoiceNumber, amount, due, d.DaysOverdue))

	if d.PaymentURL != "" {
		if en {
			paragraphs = append(paragraphs, "You can pay directly here: "+d.PaymentURL)
		} else {
			paragraphs = append(paragraphs, "U kunt direct betalen via: "+d.PaymentURL)
		}
	}
	if d.OrgPhone != "" {
		if en {
			paragraphs = append(paragraphs, "Questions? Call us on "+d.OrgPhone+".")
		} else {
			paragraphs = append(paragraphs, "Vragen? Bel ons op "+d.OrgPhone+".")
		}
	}
	if en {
		paragraphs = append(paragraphs, "Kind regards,\n"+d.OrgName)
	} else {
		paragraphs = append(paragraphs, "Met vriendelijke groet,\n"+d.OrgName)
	}
	return strings.Join(paragraphs, "\n\n")
}

func openingLine(sev models.Severity, en bool, number, amount, due string, days int) string {
	if en {
		switch sev {
		case models.SeverityFirm:
			return fmt.Sprintf("Invoice %s for %s was due on %s and is now %d days overdue. Please arrange payment.", number, amount, due, days)
		case models.SeverityUrgent:
			return fmt.Sprintf("Invoice %s for %s is %d days overdue. Please pay it within 7 days.", number, amount, days)
		case models.SeverityFinal:
			return fmt.Sprintf("This is our final reminder for invoice %s for %s, due since %s. Without payment we will hand the claim over for collection.", number, amount, due)
		default:
			return fmt.Sprintf("A friendly reminder that invoice %s for %s was due on %s.", number, amount, due)
		}
	}
	switch sev {
	case models.SeverityFirm:
		return fmt.Sprintf("Factuur %s van %s verviel op %s en staat nu %d dagen open. Wilt u de betaling regelen?", number, amount, due, days)
	case models.SeverityUrgent:
		return fmt.Sprintf("Factuur %s van %s staat %d dagen open. Wij verzoeken u deze binnen 7 dagen te voldoen.", number, amount, days)
	case models.SeverityFinal:
		return fmt.Sprintf("Dit is onze laatste herinnering voor factuur %s van %s, vervallen sinds %s. Zonder betaling dragen wij de vordering over ter incasso.", number, amount, due)
	default:
		return fmt.Sprintf("Een vriendelijke herinnering: factuur %s van %s verviel op %s.", number, amount, due)
	}
}

// FormatAmount renders minor units as euros: "€ 1.234,56" (nl) or "€1,234.56" (en).
func FormatAmount(cents int64, locale string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	frac := fmt.Sprintf("%02d", cents%100)

	thousands, decimal, prefix := ".", ",", "€ "
	if isEnglish(locale) {
		thousands, decimal, prefix = ",", ".", "€"
	}

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteString(thousands)
		}
		grouped.WriteRune(r)
	}
	return sign + prefix + grouped.String() + decimal + frac
}

// FormatDate renders a due date in the locale's customary order.
func FormatDate(t time.Time, locale string) string {
	if t.IsZero() {
		return "-"
	}
	if isEnglish(locale) {
		return t.Format("2 January 2006")
	}
	return t.Format("02-01-2006")
}

func isEnglish(locale string) bool {
	return strings.HasPrefix(strings.ToLower(locale), "en")
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
