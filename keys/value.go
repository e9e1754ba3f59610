/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package keys

import (
	"strconv"

	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/gqlcache/x"
)

// ResolveArguments resolves every argument value against vars.
func ResolveArguments(args ast.ArgumentList, vars map[string]interface{}) (
	map[string]interface{}, error) {
	out := make(map[string]interface{}, len(args))
	for _, arg := range args {
		v, err := ResolveValue(arg.Value, vars)
		if err != nil {
			return nil, err
		}
		out[arg.Name] = v
	}
	return out, nil
}

// ResolveValue converts an argument value to plain Go data: numbers become int64 or
// float64, lists become []interface{} and input objects map[string]interface{}.
// A variable without a binding in vars is a *x.MissingVariableError, a binding to nil
// resolves to nil.
func ResolveValue(v *ast.Value, vars map[string]interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case ast.Variable:
		val, ok := vars[v.Raw]
		if !ok {
			return nil, &x.MissingVariableError{Name: v.Raw}
		}
		return val, nil
	case ast.IntValue:
		i, err := strconv.ParseInt(v.Raw, 10, 64)
		if err != nil {
			// Out of int64 range, keep the precision we can.
			f, ferr := strconv.ParseFloat(v.Raw, 64)
			if ferr != nil {
				return nil, errors.Wrapf(err, "invalid int value %q", v.Raw)
			}
			return f, nil
		}
		return i, nil
	case ast.FloatValue:
		f, err := strconv.ParseFloat(v.Raw, 64)
		return f, errors.Wrapf(err, "invalid float value %q", v.Raw)
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw, nil
	case ast.BooleanValue:
		return v.Raw == "true", nil
	case ast.NullValue:
		return nil, nil
	case ast.ListValue:
		list := make([]interface{}, 0, len(v.Children))
		for _, c := range v.Children {
			item, err := ResolveValue(c.Value, vars)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	case ast.ObjectValue:
		obj := make(map[string]interface{}, len(v.Children))
		for _, c := range v.Children {
			item, err := ResolveValue(c.Value, vars)
			if err != nil {
				return nil, err
			}
			obj[c.Name] = item
		}
		return obj, nil
	}
	return nil, errors.Errorf("unknown value kind %d", v.Kind)
}

// ResolveBool resolves v and requires a boolean. Used for the if: argument of @skip and
// @include.
func ResolveBool(v *ast.Value, vars map[string]interface{}) (bool, error) {
	val, err := ResolveValue(v, vars)
	if err != nil {
		return false, err
	}
	b, ok := val.(bool)
	if !ok {
		return false, errors.Errorf("expected a boolean, got %T", val)
	}
	return b, nil
}
