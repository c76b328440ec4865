package models

// Customer is the billed party of an invoice.
type Customer struct {
	Base          `bson:",inline"`
	OrgID         string `bson:"org_id" json:"org_id"`
	Name          string `bson:"name" json:"name"`
	Email         string `bson:"email,omitempty" json:"email,omitempty"`
	Phone         string `bson:"phone,omitempty" json:"phone,omitempty"` // Raw, as entered
	DunningOptOut bool   `bson:"dunning_opt_out" json:"dunning_opt_out"`
}
