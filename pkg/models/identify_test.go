package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringOrNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "string", input: `"123456"`, expected: "123456"},
		{name: "empty string", input: `""`, expected: ""},
		{name: "integer", input: `123456`, expected: "123456"},
		{name: "large integer", input: `9876543210`, expected: "9876543210"},
		{name: "decimal", input: `12.5`, expected: "12.5"},
		{name: "exponent", input: `1e3`, expected: "1000"},
		{name: "negative", input: `-7`, expected: "-7"},
		{name: "escaped string", input: `"a\"b"`, expected: `a"b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s StringOrNumber
			require.NoError(t, json.Unmarshal([]byte(tt.input), &s))
			assert.Equal(t, tt.expected, string(s))
		})
	}
}

func TestStringOrNumber_RejectsOtherKinds(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		received string
	}{
		{name: "boolean", input: `{"phoneNumber":true}`, received: "boolean"},
		{name: "object", input: `{"phoneNumber":{"a":1}}`, received: "object"},
		{name: "array", input: `{"phoneNumber":[1]}`, received: "array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req struct {
				PhoneNumber *StringOrNumber `json:"phoneNumber"`
			}
			err := json.Unmarshal([]byte(tt.input), &req)
			require.Error(t, err)

			var typeErr *json.UnmarshalTypeError
			require.True(t, errors.As(err, &typeErr))
			assert.Equal(t, "phoneNumber", typeErr.Field)
			assert.Equal(t, tt.received, typeErr.Value)
			assert.Equal(t, StringOrNumberType, typeErr.Type)
		})
	}
}

func TestStringOrNumber_NullLeavesPointerNil(t *testing.T) {
	var req struct {
		PhoneNumber *StringOrNumber `json:"phoneNumber"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"phoneNumber":null}`), &req))
	assert.Nil(t, req.PhoneNumber)
	assert.Nil(t, req.PhoneNumber.Ptr())
}

func TestStringOrNumber_Ptr(t *testing.T) {
	s := StringOrNumber("555")
	p := s.Ptr()
	require.NotNil(t, p)
	assert.Equal(t, "555", *p)
}

func TestConsolidatedContact_WireNames(t *testing.T) {
	body, err := json.Marshal(IdentifyResponse{Contact: ConsolidatedContact{
		PrimaryContactID:    1,
		Emails:              []string{"a@x.com"},
		PhoneNumbers:        []string{},
		SecondaryContactIDs: []int64{},
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"contact":{"primaryContatctId":1,"emails":["a@x.com"],"phoneNumbers":[],"secondaryContactIds":[]}}`, string(body))
}

func TestContact_RootID(t *testing.T) {
	linked := int64(4)
	assert.Equal(t, int64(2), *Contact{ID: 2, LinkPrecedence: LinkPrecedencePrimary}.RootID())
	assert.Equal(t, int64(4), *Contact{ID: 3, LinkPrecedence: LinkPrecedenceSecondary, LinkedID: &linked}.RootID())
	assert.Nil(t, Contact{ID: 3, LinkPrecedence: LinkPrecedenceSecondary}.RootID())
}
