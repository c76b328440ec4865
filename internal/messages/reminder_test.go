package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"greendrake/dunning/internal/models"
)

func sampleData() ReminderData {
	return ReminderData{
		CustomerName:  "Jan de Vries",
		InvoiceNumber: "F-2026-0042",
		AmountCents:   123456,
		DueAt:         time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		DaysOverdue:   15,
		Severity:      models.SeverityFirm,
		PaymentURL:    "https://pay.example.nl/F-2026-0042",
		OrgName:       "Loodgieter Bakker",
		OrgPhone:      "+31201234567",
		Locale:        "nl",
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "€ 1.234,56", FormatAmount(123456, "nl"))
	assert.Equal(t, "€1,234.56", FormatAmount(123456, "en"))
	assert.Equal(t, "€ 0,05", FormatAmount(5, "nl"))
	assert.Equal(t, "€ 1.000.000,00", FormatAmount(100000000, "nl"))
	assert.Equal(t, "€ 999,99", FormatAmount(99999, "nl"))
	assert.Equal(t, "-€12.50", FormatAmount(-1250, "en"))
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "07-03-2026", FormatDate(d, "nl"))
	assert.Equal(t, "7 March 2026", FormatDate(d, "en"))
	assert.Equal(t, "-", FormatDate(time.Time{}, "nl"))
}

func TestTemplateNameForDaysOverdue(t *testing.T) {
	cases := map[int]string{
		0:   TemplateGentle,
		6:   TemplateGentle,
		7:   TemplateFirm,
		29:  TemplateFirm,
		30:  TemplateUrgent,
		59:  TemplateUrgent,
		60:  TemplateFinal,
		400: TemplateFinal,
	}
	for days, want := range cases {
		assert.Equal(t, want, TemplateNameForDaysOverdue(days), "days=%d", days)
	}
}

func TestBuildTemplateParams(t *testing.T) {
	params := BuildTemplateParams(sampleData())
	assert.Equal(t, []string{
		"Jan de Vries",
		"F-2026-0042",
		"€ 1.234,56",
		"30-09-2026",
		"https://pay.example.nl/F-2026-0042",
		"Loodgieter Bakker",
	}, params)
}

func TestBuildTemplateParams_FallsBackToOrgPhone(t *testing.T) {
	d := sampleData()
	d.PaymentURL = ""
	params := BuildTemplateParams(d)
	assert.Equal(t, "+31201234567", params[4])

	d.OrgPhone = ""
	assert.Equal(t, "-", BuildTemplateParams(d)[4])
}

func TestSubject(t *testing.T) {
	d := sampleData()
	assert.Equal(t, "Betalingsherinnering: factuur F-2026-0042", Subject(d))
	d.Severity = models.SeverityFinal
	assert.Equal(t, "Laatste herinnering: factuur F-2026-0042", Subject(d))
	d.Locale = "en"
	assert.Equal(t, "Final reminder: invoice F-2026-0042", Subject(d))
}

func TestGenerateReminderMessage_Dutch(t *testing.T) {
	msg := GenerateReminderMessage(sampleData())
	assert.Contains(t, msg, "Beste Jan de Vries,")
	assert.Contains(t, msg, "F-2026-0042")
	assert.Contains(t, msg, "€ 1.234,56")
	assert.Contains(t, msg, "15 dagen")
	assert.Contains(t, msg, "https://pay.example.nl/F-2026-0042")
	assert.Contains(t, msg, "+31201234567")
	assert.Contains(t, msg, "Loodgieter Bakker")
	assert.Contains(t, msg, "\n\n", "paragraphs are separated by blank lines")
}

func TestGenerateReminderMessage_EnglishWithoutOptionalParts(t *testing.T) {
	d := sampleData()
	d.Locale = "en"
	d.PaymentURL = ""
	d.OrgPhone = ""
	d.CustomerName = " "
	d.Severity = models.SeverityGentle
	msg := GenerateReminderMessage(d)
	assert.Contains(t, msg, "Dear customer,")
	assert.Contains(t, msg, "friendly reminder")
	assert.NotContains(t, msg, "pay directly")
	assert.NotContains(t, msg, "Call us")
}
