package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name  string  `json:"name" validate:"required,notblank,max=10"`
	Email string  `json:"email" validate:"omitempty,email"`
	Price string  `json:"price" validate:"omitempty,price"`
	Time  *int    `json:"time_minutes" validate:"omitempty,gte=0"`
	Link  *string `json:"link" validate:"omitempty,url"`
}

func TestValidateStruct_Valid(t *testing.T) {
	req := sampleRequest{Name: "Vegan", Email: "a@example.com", Price: "12.50"}
	assert.NoError(t, ValidateStruct(&req))
}

func TestValidateStruct_ReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(&sampleRequest{Name: "", Email: "nope"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))

	details := verr.Details()
	assert.Equal(t, "name is required", details["name"])
	assert.Equal(t, "email must be a valid email address", details["email"])
}

func TestValidateStruct_NotBlank(t *testing.T) {
	err := ValidateStruct(&sampleRequest{Name: "   "})

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "name may not be blank", verr.Details()["name"])
}

func TestValidateStruct_MinMaxMessages(t *testing.T) {
	negative := -1
	err := ValidateStruct(&sampleRequest{Name: "far too long name", Time: &negative})

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "name must be at most 10 characters", verr.Details()["name"])
	assert.Equal(t, "time_minutes must be greater than or equal to 0", verr.Details()["time_minutes"])
}

func TestIsPrice(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"5", true},
		{"5.5", true},
		{"5.50", true},
		{"999.99", true},
		{"0.00", true},
		{"1000", false},
		{"5.555", false},
		{"-1.00", false},
		{"", false},
		{"abc", false},
		{"5.", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPrice(tt.in))
		})
	}
}

func TestNewFieldError(t *testing.T) {
	err := NewFieldError("tags", "tags must be a comma separated list of ids")
	assert.Equal(t, "tags must be a comma separated list of ids", err.Error())
	assert.Equal(t, map[string]string{"tags": "tags must be a comma separated list of ids"}, err.Details())
}
