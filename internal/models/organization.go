package models

// Organization is the business sending the invoices.
type Organization struct {
	Base                   `bson:",inline"`
	Name                   string `bson:"name" json:"name"`
	WhatsAppBusinessNumber string `bson:"whatsapp_business_number,omitempty" json:"whatsapp_business_number,omitempty"`
	ControlNumber          string `bson:"control_number,omitempty" json:"control_number,omitempty"`
}

// OrgContactInfo is the sender identity shown in reminder messages.
type OrgContactInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"` // Normalized, empty when unknown
}
