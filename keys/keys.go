/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package keys builds the strings the normalized store is keyed by: field storage keys,
// which fold resolved arguments into the field name, and node identifiers, which are
// either an external entity id or derived from the position of an object in a result.
package keys

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/pkg/errors"
)

const (
	pathSep     = "."
	typenameSep = ":"
)

// StorageKey returns name when args is empty, else name followed by the canonical JSON
// encoding of the resolved arguments in parentheses, e.g. `user({"id":1})`.
func StorageKey(name string, args ast.ArgumentList, vars map[string]interface{}) (string, error) {
	if len(args) == 0 {
		return name, nil
	}
	resolved, err := ResolveArguments(args, vars)
	if err != nil {
		return "", err
	}
	enc, err := Canonical(resolved)
	if err != nil {
		return "", errors.Wrapf(err, "while encoding arguments of %s", name)
	}
	var b strings.Builder
	b.Grow(len(name) + len(enc) + 2)
	b.WriteString(name)
	b.WriteByte('(')
	b.WriteString(enc)
	b.WriteByte(')')
	return b.String(), nil
}

// FieldKey returns the storage key of a selected field.
func FieldKey(f *ast.Field, vars map[string]interface{}) (string, error) {
	return StorageKey(f.Name, f.Arguments, vars)
}

// ResponseKey returns the key a field's value is found under in a result object.
func ResponseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Canonical encodes v as JSON with object keys sorted and without HTML escaping, so equal
// argument sets always encode to the same string.
func Canonical(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// EntityID returns the node identifier of an object with an external identity.
func EntityID(external string) string {
	return "(" + external + ")"
}

// IsEntityID tells whether id was built by EntityID.
func IsEntityID(id string) bool {
	return strings.HasPrefix(id, "(") && strings.HasSuffix(id, ")")
}

// ChildID returns the path derived identifier of the object found under segment (a
// storage key) of the parent node. A non empty typename is appended as a discriminator.
func ChildID(parent, segment, typename string) string {
	return WithTypename(parent+pathSep+segment, typename)
}

// IndexID returns the path of the i-th element of the list found at parent.
func IndexID(parent string, i int) string {
	return parent + pathSep + strconv.Itoa(i)
}

// WithTypename appends the type discriminator to id.
func WithTypename(id, typename string) string {
	if typename == "" {
		return id
	}
	return id + typenameSep + typename
}
