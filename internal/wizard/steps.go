package wizard

import "strings"

// Form field names. The wizard's form data is a flat field -> value map;
// media attachments ride alongside it in memory.
const (
	FieldServiceType      = "service_type"
	FieldPickupProperty   = "pickup_property"
	FieldPickupCounty     = "pickup_county"
	FieldPickupCity       = "pickup_city"
	FieldPickupStreet     = "pickup_street"
	FieldDeliveryProperty = "delivery_property"
	FieldDeliveryCounty   = "delivery_county"
	FieldDeliveryCity     = "delivery_city"
	FieldDeliveryStreet   = "delivery_street"
	FieldMoveDate         = "move_date"
	FieldFlexibleDates    = "flexible_dates"
	FieldPacking          = "packing"
	FieldDismantling      = "dismantling"
	FieldSurveyMethod     = "survey_method"
	FieldContactName      = "contact_name"
	FieldContactPhone     = "contact_phone"
	FieldContactEmail     = "contact_email"
)

type Step struct {
	Name     string
	Required []string
}

// Steps is the fixed wizard sequence. A step with no required fields is
// always valid.
var Steps = []Step{
	{Name: "service-type", Required: []string{FieldServiceType}},
	{Name: "pickup-property", Required: []string{FieldPickupProperty}},
	{Name: "pickup-address", Required: []string{FieldPickupCounty, FieldPickupCity}},
	{Name: "delivery-property", Required: []string{FieldDeliveryProperty}},
	{Name: "delivery-address", Required: []string{FieldDeliveryCounty, FieldDeliveryCity}},
	{Name: "move-date", Required: []string{FieldMoveDate}},
	{Name: "packing"},
	{Name: "dismantling"},
	{Name: "survey", Required: []string{FieldSurveyMethod}},
	{Name: "contact", Required: []string{FieldContactName, FieldContactPhone, FieldContactEmail}},
}

// ValidateStep reports whether every required field for the step index is
// present and non-blank after trimming. Out-of-range indexes are valid.
// A flexible-dates selection satisfies the move-date requirement.
func ValidateStep(index int, fields map[string]string) bool {
	if index < 0 || index >= len(Steps) {
		return true
	}

	for _, name := range Steps[index].Required {
		if name == FieldMoveDate && strings.TrimSpace(fields[FieldFlexibleDates]) == "true" {
			continue
		}

		if strings.TrimSpace(fields[name]) == "" {
			return false
		}
	}

	return true
}
