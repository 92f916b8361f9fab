// Package wire implements the line-delimited JSON protocol spoken between
// the frontend and the backend host: request framing on the way in,
// response-file decoding (and shape validation) on the way out.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request is one command sent to the backend host: cmd names the hook,
// Kwargs carries its arguments, and Result is the absolute path the host
// must write its JSON response into.
type Request struct {
	Cmd    string         `json:"cmd"`
	Kwargs map[string]any `json:"kwargs"`
	Result string         `json:"result"`
}

// Response is the discriminated shape written by the host: exactly one of
// Return (success) or Code/ExcType/ExcMsg (failure) is populated.
type Response struct {
	Return  json.RawMessage `json:"return,omitempty"`
	Code    *int            `json:"code,omitempty"`
	ExcType string          `json:"exc_type,omitempty"`
	ExcMsg  string          `json:"exc_msg,omitempty"`
}

// IsFailure reports whether the response carries the error shape rather
// than a return value.
func (r Response) IsFailure() bool {
	return r.ExcType != "" || r.Code != nil
}

const responseSchema = `{
	"type": "object",
	"oneOf": [
		{
			"required": ["return"],
			"not": {"required": ["exc_type"]}
		},
		{
			"required": ["exc_type", "exc_msg"],
			"not": {"required": ["return"]}
		}
	]
}`

var compiledResponseSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("response.json", bytes.NewReader([]byte(responseSchema))); err != nil {
		panic(fmt.Sprintf("wire: invalid embedded response schema: %v", err))
	}
	s, err := c.Compile("response.json")
	if err != nil {
		panic(fmt.Sprintf("wire: failed to compile response schema: %v", err))
	}
	return s
}

// EncodeRequest writes req as a single CRLF-terminated JSON line, the exact
// framing the backend host's command loop reads with a LineReader.
func EncodeRequest(w io.Writer, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("wire: encoding request: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wire: writing request: %w", err)
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		return fmt.Errorf("wire: writing request terminator: %w", err)
	}
	return nil
}

// DecodeResponseFile reads and validates the response file at path. A
// missing file is reported distinctly (wrapping ErrResponseMissing) from one
// whose content fails validation, so callers can tell the two apart with
// errors.Is.
func DecodeResponseFile(path string) (Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Response{}, fmt.Errorf("%w: %s", ErrResponseMissing, path)
		}
		return Response{}, fmt.Errorf("wire: reading response file %s: %w", path, err)
	}
	return DecodeResponse(data)
}

// DecodeResponse parses and schema-validates a raw response payload.
func DecodeResponse(data []byte) (Response, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return Response{}, fmt.Errorf("wire: malformed response JSON: %w", err)
	}
	if err := compiledResponseSchema.Validate(generic); err != nil {
		return Response{}, fmt.Errorf("wire: response shape invalid: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("wire: malformed response JSON: %w", err)
	}
	return resp, nil
}

// ErrResponseMissing is returned by DecodeResponseFile when the response
// file does not exist; callers typically only surface this after the
// child's exit, when no more response can arrive.
var ErrResponseMissing = fmt.Errorf("backend response file is missing")
