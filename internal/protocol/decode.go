package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// DecodePullRequest parses and structurally validates a pull payload.
func DecodePullRequest(data []byte) (*PullRequest, error) {
	req := &PullRequest{}
	if err := decodeJSON(data, req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// DecodePushRequest parses and structurally validates a push payload.
func DecodePushRequest(data []byte) (*PushRequest, error) {
	req := &PushRequest{}
	if err := decodeJSON(data, req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Changes.Normalize()
	return req, nil
}

// DecodeAttachmentURLRequest parses an attachment URL lookup.
func DecodeAttachmentURLRequest(data []byte) (*AttachmentURLRequest, error) {
	req := &AttachmentURLRequest{}
	if err := decodeJSON(data, req); err != nil {
		return nil, err
	}
	if err := Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate checks a pull request that was built in memory.
func (r *PullRequest) Validate() error {
	if err := Validate(r); err != nil {
		return err
	}
	if r.Cursor != nil && r.LastPulledAt != nil && *r.LastPulledAt > r.Cursor.SnapshotAt {
		return NewValidationError("lastPulledAt", "must not be after cursor.snapshotAt")
	}
	return nil
}

// Validate checks a push request that was built in memory.
func (r *PushRequest) Validate() error {
	if err := Validate(r); err != nil {
		return err
	}
	return ValidateChanges("changes", &r.Changes)
}

func decodeJSON(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewValidationError("", "request body is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return decodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return NewValidationError("", "unexpected data after JSON value")
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return NewValidationError(typeErr.Field, typeReason(typeErr))
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return NewValidationError("", fmt.Sprintf("malformed JSON at byte offset %d", syntaxErr.Offset))
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return NewValidationError(strings.Trim(name, `"`), "unknown field")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return NewValidationError("", "truncated JSON")
	}
	return NewValidationError("", err.Error())
}

func typeReason(e *json.UnmarshalTypeError) string {
	t := e.Type
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if strings.HasPrefix(e.Value, "number") {
			return "must be an integer"
		}
		return "must be an integer, got " + e.Value
	case reflect.String:
		return "must be a string, got " + e.Value
	case reflect.Slice:
		return "must be an array, got " + e.Value
	case reflect.Struct, reflect.Map:
		return "must be an object, got " + e.Value
	case reflect.Bool:
		return "must be a boolean, got " + e.Value
	}
	return fmt.Sprintf("must be %s, got %s", e.Type, e.Value)
}
