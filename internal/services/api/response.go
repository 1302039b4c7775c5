package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMissingField is returned by Response.Decode when the key is absent.
var ErrMissingField = errors.New("field missing from response")

// Response is a decoded JSON object whose members are left raw until a
// caller asks for them.
type Response map[string]json.RawMessage

// Decode unmarshals the member named key into v.
func (r Response) Decode(key string, v any) error {
	raw, ok := r[key]
	if !ok {
		return fmt.Errorf("%q: %w", key, ErrMissingField)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %q: %w", key, err)
	}
	return nil
}

// ID is a resource identifier. The API sends ids as numbers on some
// endpoints and as strings on others.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %s", data)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Int returns the identifier as an integer, for endpoints that need one.
func (id ID) Int() (int64, error) {
	return strconv.ParseInt(string(id), 10, 64)
}
