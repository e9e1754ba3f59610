/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"testing"

	"github.com/dgraph-io/gqlparser/v2/gqlerror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMissingFieldError(t *testing.T) {
	err := &MissingFieldError{Field: "name", NodeID: "(User:1)", Path: []string{"user", "name"}}
	require.Equal(t, `missing field "name" on node "(User:1)" at user.name during read`,
		err.Error())

	err = &MissingFieldError{Field: "name", Write: true}
	require.Equal(t, `missing field "name" during write`, err.Error())

	wrapped := errors.Wrapf(err, "while writing")
	require.True(t, IsMissingField(wrapped))
	require.True(t, IsPartial(wrapped))
	require.False(t, IsPartial(&MissingFragmentError{Name: "F"}))
	require.False(t, IsMissingField(nil))
}

func TestWrapf(t *testing.T) {
	require.NoError(t, Wrapf(nil, "nothing"))
	require.EqualError(t, Wrapf(errors.New("boom"), "while %s", "testing"), "while testing: boom")
}

func TestAsGQLErrors(t *testing.T) {
	require.Nil(t, AsGQLErrors(nil))

	list := AsGQLErrors(errors.Wrap(&MissingFieldError{Field: "a", NodeID: "ROOT_QUERY"}, "read"))
	require.Len(t, list, 1)
	require.Equal(t, "MISSING_FIELD", list[0].Extensions["code"])
	require.Equal(t, "ROOT_QUERY", list[0].Extensions["nodeID"])

	list = AsGQLErrors(&MissingFragmentError{Name: "F"})
	require.Equal(t, "MISSING_FRAGMENT", list[0].Extensions["code"])
	require.Equal(t, `no fragment named "F"`, list[0].Message)

	list = AsGQLErrors(&MissingVariableError{Name: "v"})
	require.Equal(t, "MISSING_VARIABLE", list[0].Extensions["code"])
	require.Equal(t, "variable $v is not defined", list[0].Message)

	gqlErr := &gqlerror.Error{Message: "syntax"}
	require.Equal(t, gqlerror.List{gqlErr}, AsGQLErrors(gqlErr))
	pair := gqlerror.List{gqlErr, gqlErr}
	require.Equal(t, pair, AsGQLErrors(pair))

	list = AsGQLErrors(errors.New("plain"))
	require.Equal(t, "plain", list[0].Message)
	require.Nil(t, list[0].Extensions)
}
