/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

// This file contains the error handling helpers and the error types returned
// by the normalized store.
// Some common use cases are:
// (1) You receive an error from an external lib in a main path and would like
//     to log fatal. Use x.Check.
// (2) You receive an error and would like to pass it on with some stack trace
//     information. Use x.Wrapf or errors.Wrapf.
// (3) A selection can't be satisfied by the data or the store. Return one of
//     the Missing* errors below, they are never retried here.

import (
	"fmt"
	"log"
	"strings"

	"github.com/pkg/errors"
)

// Check logs fatal if err != nil.
func Check(err error) {
	if err != nil {
		err = errors.Wrap(err, "")
		log.Fatalf("%+v", err)
	}
}

// Wrapf is errors.Wrapf, but returns nil for a nil error without formatting.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// Ignore function is used to ignore errors deliberately, while keeping the
// linter happy.
func Ignore(_ error) {
	// Do nothing.
}

// MissingFieldError is returned when a selected field has no value. On the write side
// the field was absent from the result data; on the read side the store holds no value
// for it under NodeID.
type MissingFieldError struct {
	// Field is the response key of the missing field.
	Field string `json:"field"`
	// NodeID is the node that was being written or read.
	NodeID string `json:"nodeId"`
	// Path is the response path from the operation root to the field.
	Path []string `json:"path"`
	// Write is true when the error was raised while writing.
	Write bool `json:"write,omitempty"`
}

func (e *MissingFieldError) Error() string {
	op := "read"
	if e.Write {
		op = "write"
	}
	var loc string
	if len(e.Path) > 0 {
		loc = " at " + strings.Join(e.Path, ".")
	}
	if e.NodeID == "" {
		return fmt.Sprintf("missing field %q%s during %s", e.Field, loc, op)
	}
	return fmt.Sprintf("missing field %q on node %q%s during %s", e.Field, e.NodeID, loc, op)
}

// Partial marks the error as a partial data condition: the callers may choose to keep
// whatever was written or read before the error.
func (e *MissingFieldError) Partial() bool { return true }

// MissingFragmentError is returned when a fragment spread names a fragment that is not
// part of the document.
type MissingFragmentError struct {
	Name string
}

func (e *MissingFragmentError) Error() string {
	return fmt.Sprintf("no fragment named %q", e.Name)
}

// MissingVariableError is returned when an argument refers to a variable that has no
// binding.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("variable $%s is not defined", e.Name)
}

// IsMissingField reports whether err (or its cause) is a *MissingFieldError.
func IsMissingField(err error) bool {
	var mf *MissingFieldError
	return errors.As(err, &mf)
}

// IsPartial reports whether err marks a partial write or read.
func IsPartial(err error) bool {
	var p interface{ Partial() bool }
	return errors.As(err, &p) && p.Partial()
}
