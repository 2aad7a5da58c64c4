package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

type declineInput struct {
	Actor  string `json:"actor" validate:"required"`
	Reason string `json:"reason" validate:"required,max=500"`
	SpO2   int    `json:"spo2" validate:"gte=0,lte=100"`
}

func TestValidateReportsJSONFieldName(t *testing.T) {
	v := New()

	err := v.Validate(declineInput{Actor: "Dr. A", SpO2: 97})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ValidationErr))
	assert.Contains(t, err.Error(), "reason is required")

	err = v.Validate(declineInput{Actor: "Dr. A", Reason: "no beds", SpO2: 130})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spo2 must be <= 100")

	assert.NoError(t, v.Validate(declineInput{Actor: "Dr. A", Reason: "no beds", SpO2: 95}))
}

func TestValidateField(t *testing.T) {
	v := New()

	err := v.ValidateField("pickup_location", "", "required")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ValidationErr))

	assert.NoError(t, v.ValidateField("eta_minutes", 12, "gte=0"))
}
