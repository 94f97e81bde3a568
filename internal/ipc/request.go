// Package ipc serves the line-delimited JSON command protocol over a Unix
// socket.
package ipc

import (
	"bytes"
	"encoding/json"
	"strings"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
)

// DefaultLimit applies when a request carries no limit.
const DefaultLimit = 50

// Request is one decoded command line. Fields may appear at the top level
// or inside an "args" object; args wins when both are present.
type Request struct {
	Cmd    string
	fields map[string]json.RawMessage
	args   map[string]json.RawMessage
}

// Response is the envelope written for every request.
type Response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Success wraps data in an ok response.
func Success(data interface{}) Response {
	return Response{OK: true, Data: data}
}

// Failure wraps err in an error response.
func Failure(err error) Response {
	return Response{OK: false, Error: err.Error()}
}

// ParseRequest decodes line. The command name is lowercased.
func ParseRequest(line []byte) (*Request, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidArgument, "invalid json", err)
	}
	if fields == nil {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "request must be a JSON object")
	}

	raw, ok := fields["cmd"]
	if !ok {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "missing cmd")
	}
	var cmd string
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "cmd must be a string")
	}

	req := &Request{Cmd: strings.ToLower(strings.TrimSpace(cmd)), fields: fields}
	if rawArgs, ok := fields["args"]; ok {
		// A non-object args value is ignored and fields fall back to the top level.
		var args map[string]json.RawMessage
		if err := json.Unmarshal(rawArgs, &args); err == nil {
			req.args = args
		}
	}
	return req, nil
}

func (r *Request) lookup(key string) (json.RawMessage, bool) {
	if v, ok := r.args[key]; ok && !isNull(v) {
		return v, true
	}
	if v, ok := r.fields[key]; ok && !isNull(v) {
		return v, true
	}
	return nil, false
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Int returns an integer field. ok is false when the field is absent.
func (r *Request) Int(key string) (n int64, ok bool, err error) {
	v, ok := r.lookup(key)
	if !ok {
		return 0, false, nil
	}
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, true, apperrors.Newf(apperrors.ErrInvalidArgument, "%s must be an integer", key)
	}
	return n, true, nil
}

// RequireInt returns an integer field or fails when it is absent.
func (r *Request) RequireInt(key string) (int64, error) {
	n, ok, err := r.Int(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperrors.Newf(apperrors.ErrInvalidArgument, "%s requires %s", r.Cmd, key)
	}
	return n, nil
}

// Bool returns a boolean field. ok is false when the field is absent.
func (r *Request) Bool(key string) (b bool, ok bool, err error) {
	v, ok := r.lookup(key)
	if !ok {
		return false, false, nil
	}
	if err := json.Unmarshal(v, &b); err != nil {
		return false, true, apperrors.Newf(apperrors.ErrInvalidArgument, "%s must be a boolean", key)
	}
	return b, true, nil
}

// String returns a string field. ok is false when the field is absent.
func (r *Request) String(key string) (s string, ok bool, err error) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false, nil
	}
	if err := json.Unmarshal(v, &s); err != nil {
		return "", true, apperrors.Newf(apperrors.ErrInvalidArgument, "%s must be a string", key)
	}
	return s, true, nil
}

// IDs returns the "ids" integer array. An absent field is an error.
func (r *Request) IDs() ([]int64, error) {
	v, ok := r.lookup("ids")
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "%s requires ids", r.Cmd)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(v, &elems); err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "ids must be an array")
	}
	ids := make([]int64, 0, len(elems))
	for _, e := range elems {
		var id int64
		if err := json.Unmarshal(e, &id); err != nil {
			return nil, apperrors.New(apperrors.ErrInvalidArgument, "ids must contain only integers")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Limit returns the "limit" field, DefaultLimit when absent.
func (r *Request) Limit() (int, error) {
	n, ok, err := r.Int("limit")
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultLimit, nil
	}
	if n < 0 {
		return 0, apperrors.Newf(apperrors.ErrInvalidArgument, "limit must not be negative, got %d", n)
	}
	return int(n), nil
}
