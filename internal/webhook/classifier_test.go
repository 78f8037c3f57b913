package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		field string
		want  model.EventKind
	}{
		{model.FieldMessages, model.KindMessages},
		{model.FieldTemplateStatusUpdate, model.KindTemplateStatus},
		{model.FieldAccountReviewUpdate, model.KindAccountUpdate},
		{model.FieldPhoneNumberNameUpdate, model.KindAccountUpdate},
		{model.FieldPhoneQualityUpdate, model.KindAccountUpdate},
		{model.FieldBusinessCapability, model.KindAccountUpdate},
		{"security", model.KindUnhandled},
		{"", model.KindUnhandled},
	}

	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			got := Classify(model.Change{Field: tc.field})
			assert.Equal(t, tc.want, got)
		})
	}
}
