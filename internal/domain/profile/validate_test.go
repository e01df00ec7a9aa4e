package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		field  string
		reason string
	}{
		{
			name:   "first missing address field",
			input:  &Address{StreetName: "Main", ZipCode: "101"},
			field:  "houseNumber",
			reason: "required",
		},
		{
			name:   "card number too short",
			input:  &PaymentCard{CardholderName: "A", CardNumber: "4111", Month: 1, Year: 2030},
			field:  "cardNumber",
			reason: "must have at least 12 characters",
		},
		{
			name:   "month out of range",
			input:  &PaymentCard{CardholderName: "A", CardNumber: "4111111111111111", Month: 13, Year: 2030},
			field:  "month",
			reason: "must be at most 12",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			var fieldErr *InvalidFieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tt.field, fieldErr.Field)
			assert.Equal(t, tt.reason, fieldErr.Reason)
		})
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, Validate(&Address{
		StreetName:  "Main",
		HouseNumber: "1",
		ZipCode:     "101",
		Country:     "IS",
		City:        "Reykjavik",
	}))
	require.NoError(t, Validate(&PaymentCard{
		CardholderName: "A",
		CardNumber:     "4111111111111111",
		Month:          12,
		Year:           2030,
	}))
}
