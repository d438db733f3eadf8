package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
)

// IdentifyRequest is the validated, normalized fact handed to the engine.
// At least one field is non-nil.
type IdentifyRequest struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

// IdentifyResponse is the /identify success body
type IdentifyResponse struct {
	Contact ConsolidatedContact `json:"contact"`
}

// StringOrNumber accepts a JSON string or number and keeps its string form.
// Numbers use the shortest decimal representation, so 9876543210 stays "9876543210".
type StringOrNumber string

// StringOrNumberType is reported in decode errors for StringOrNumber fields
var StringOrNumberType = reflect.TypeOf(StringOrNumber(""))

func (s *StringOrNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return typeError("empty")
	}

	switch b[0] {
	case '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = StringOrNumber(str)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return typeError("number " + string(b))
		}
		*s = StringOrNumber(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	case 't', 'f':
		return typeError("boolean")
	case '{':
		return typeError("object")
	case '[':
		return typeError("array")
	}

	return typeError(string(b))
}

// typeError lets encoding/json attach the field path to the failure
func typeError(value string) error {
	return &json.UnmarshalTypeError{Value: value, Type: StringOrNumberType}
}

// Ptr returns the value as a *string, nil when s is nil
func (s *StringOrNumber) Ptr() *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
