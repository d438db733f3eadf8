package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/labstack/echo/v4"
)

// BindRequest decodes the JSON or urlencoded body into T and validates it.
// An empty body decodes as an empty object. Type mismatches come back as
// field errors; unparseable JSON is a plain 400.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	body, err := readBody(c)
	if err != nil {
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}

	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &v); err != nil {
			return v, decodeError(err)
		}
	}

	return Validate(v)
}

// readBody returns the JSON body, converting a form post into a JSON object
// of its first values.
func readBody(c echo.Context) ([]byte, error) {
	req := c.Request()
	if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm) {
		return io.ReadAll(req.Body)
	}

	form, err := c.FormParams()
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(form))
	for key := range form {
		fields[key] = form.Get(key)
	}
	return json.Marshal(fields)
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		path := typeErr.Field
		if path == "" {
			return NewValidationError(FieldError{Path: RootPath, Message: fmt.Sprintf("Expected object, received %s", typeErr.Value)})
		}
		expected := jsonKind(typeErr.Type.Kind().String())
		if typeErr.Type == models.StringOrNumberType {
			expected = "string or number"
		}
		return NewValidationError(FieldError{Path: path, Message: fmt.Sprintf("Expected %s, received %s", expected, typeErr.Value)})
	}

	return httperror.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
}

func jsonKind(kind string) string {
	switch kind {
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "float32", "float64":
		return "number"
	case "map", "struct":
		return "object"
	case "slice", "array":
		return "array"
	default:
		return kind
	}
}
