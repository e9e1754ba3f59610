/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"github.com/dgraph-io/gqlparser/v2/gqlerror"
	"github.com/pkg/errors"
)

// AsGQLErrors formats an error as a list of GraphQL errors.
// A gqlerror.List gets returned as is, a *gqlerror.Error gets returned as a one
// item list, and all other errors get printed into a *gqlerror.Error. Missing data
// errors carry a "code" extension so clients can tell them apart. A nil input results
// in nil output.
func AsGQLErrors(err error) gqlerror.List {
	if err == nil {
		return nil
	}

	switch e := errors.Cause(err).(type) {
	case *gqlerror.Error:
		return gqlerror.List{e}
	case gqlerror.List:
		return e
	case *MissingFieldError:
		return gqlerror.List{withCode(err, "MISSING_FIELD", map[string]interface{}{
			"field":  e.Field,
			"nodeID": e.NodeID,
		})}
	case *MissingFragmentError:
		return gqlerror.List{withCode(err, "MISSING_FRAGMENT", map[string]interface{}{
			"fragment": e.Name,
		})}
	case *MissingVariableError:
		return gqlerror.List{withCode(err, "MISSING_VARIABLE", map[string]interface{}{
			"variable": e.Name,
		})}
	default:
		return gqlerror.List{&gqlerror.Error{Message: err.Error()}}
	}
}

func withCode(err error, code string, ext map[string]interface{}) *gqlerror.Error {
	ext["code"] = code
	return &gqlerror.Error{Message: err.Error(), Extensions: ext}
}
