package webhook

import (
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
)

// accountFields are the change fields the account sink understands.
var accountFields = map[string]struct{}{
	model.FieldAccountReviewUpdate:   {},
	model.FieldPhoneNumberNameUpdate: {},
	model.FieldPhoneQualityUpdate:    {},
	model.FieldBusinessCapability:    {},
}

// Classify maps one webhook change to its processing lane. Unknown fields
// classify as unhandled; the handler logs and acknowledges them.
func Classify(change model.Change) model.EventKind {
	switch {
	case change.Field == model.FieldMessages:
		return model.KindMessages
	case change.Field == model.FieldTemplateStatusUpdate:
		return model.KindTemplateStatus
	default:
		if _, ok := accountFields[change.Field]; ok {
			return model.KindAccountUpdate
		}
		return model.KindUnhandled
	}
}
