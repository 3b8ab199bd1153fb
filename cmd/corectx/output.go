package main

import (
	"encoding/json"
	"fmt"
	"os"

	"corectx/internal/envelope"
	"corectx/internal/errs"
)

// exitCodeForError maps any error to its CLI exit code: CoreError kinds
// use their table mapping, anything else is treated as Internal.
func exitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	e := err
	for e != nil {
		if ce, ok := e.(*errs.CoreError); ok {
			return ce.ExitCode()
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return errs.Internal.ExitCode()
}

// emit builds an envelope for schema, prints it in the requested format,
// and exits the process with the envelope's mapped exit code. data is
// ignored when err != nil.
func emit(schema envelope.Schema, data interface{}, err error) {
	b := envelope.New(schema)
	if err != nil {
		b.Err(err)
	} else {
		b.OK(data)
	}
	env := b.Build()

	if formatFlag == "human" {
		fmt.Println(formatHuman(env))
	} else {
		out, mErr := env.MarshalIndent()
		if mErr != nil {
			fmt.Fprintf(os.Stderr, "error marshaling output: %v\n", mErr)
			os.Exit(errs.Internal.ExitCode())
		}
		fmt.Println(string(out))
	}
	os.Exit(env.ExitCode())
}

// formatHuman renders an envelope for a terminal: the error message and
// kind on failure, or a pretty-printed JSON payload on success (corectx's
// payloads are structured enough that a bespoke human renderer per schema
// isn't worth the upkeep; unlike the CKB CLI this imitates, every payload
// here is already a flat, readable shape).
func formatHuman(env *envelope.Envelope) string {
	if !env.OK {
		return fmt.Sprintf("error [%s]: %s", env.Error.Kind, env.Error.Message)
	}
	out, err := json.MarshalIndent(env.Data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", env.Data)
	}
	return string(out)
}
