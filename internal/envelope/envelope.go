// Package envelope builds the {schema, ok, ...} / {schema, ok:false,
// error:{kind,message,details}} JSON response shape shared by every
// subcommand's JSON output (spec.md §6).
package envelope

import (
	"encoding/json"

	"corectx/internal/errs"
)

// Schema identifies which component produced an envelope.
type Schema string

// Schema names, one per component.
const (
	SchemaContext Schema = "context-v1"
	SchemaEdit    Schema = "edit-v1"
	SchemaBackup  Schema = "backup-v1"
	SchemaConfig  Schema = "config-v1"
)

// ErrorBody is the error sub-object of a failed envelope.
type ErrorBody struct {
	Kind    errs.Kind   `json:"kind"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Envelope is the top-level JSON shape returned by every corectx command.
type Envelope struct {
	Schema Schema      `json:"schema"`
	OK     bool        `json:"ok"`
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// Builder constructs an Envelope with a fluent API.
type Builder struct {
	env *Envelope
}

// New starts a Builder for the given schema.
func New(schema Schema) *Builder {
	return &Builder{env: &Envelope{Schema: schema}}
}

// OK marks the envelope successful and attaches the payload.
func (b *Builder) OK(data interface{}) *Builder {
	b.env.OK = true
	b.env.Data = data
	b.env.Error = nil
	return b
}

// Err marks the envelope failed, deriving kind/message/details from an
// *errs.CoreError when possible and falling back to Internal otherwise.
func (b *Builder) Err(err error) *Builder {
	b.env.OK = false
	b.env.Data = nil

	if ce := asCoreError(err); ce != nil {
		b.env.Error = &ErrorBody{Kind: ce.Kind, Message: ce.Message, Details: ce.Details}
		return b
	}
	b.env.Error = &ErrorBody{Kind: errs.Internal, Message: err.Error()}
	return b
}

func asCoreError(err error) *errs.CoreError {
	for err != nil {
		if ce, ok := err.(*errs.CoreError); ok {
			return ce
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

// Build returns the finished envelope.
func (b *Builder) Build() *Envelope {
	return b.env
}

// MarshalIndent marshals the envelope pretty-printed for CLI consumption.
func (e *Envelope) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

// ExitCode returns the process exit code implied by this envelope: 0 when
// OK, otherwise the Kind's mapped exit code.
func (e *Envelope) ExitCode() int {
	if e.OK || e.Error == nil {
		return 0
	}
	return e.Error.Kind.ExitCode()
}
