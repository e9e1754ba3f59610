/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package normalize

import (
	"github.com/dgraph-io/gqlparser/v2/ast"

	"github.com/hypermodeinc/gqlcache/keys"
	"github.com/hypermodeinc/gqlcache/x"
)

// collectedField is one entry of the effective field list of a selection set. Fields
// sharing a response key are merged into one entry and their sub-selections
// concatenated.
type collectedField struct {
	field       *ast.Field
	responseKey string
	selections  ast.SelectionSet
	// fromFragment is true when every occurrence of the field came from an inline
	// fragment or a fragment spread.
	fromFragment bool
}

func (f *collectedField) isLeaf() bool {
	return len(f.selections) == 0
}

type collector struct {
	vars      map[string]interface{}
	fragments ast.FragmentDefinitionList
}

// collect flattens set into its effective field list. Inline fragments and fragment
// spreads are expanded whatever their type condition; @skip and @include are applied.
func (c *collector) collect(set ast.SelectionSet) ([]*collectedField, error) {
	var fields []*collectedField
	index := make(map[string]*collectedField)
	visiting := make(map[string]bool)

	var walk func(set ast.SelectionSet, inFragment bool) error
	walk = func(set ast.SelectionSet, inFragment bool) error {
		for _, sel := range set {
			switch s := sel.(type) {
			case *ast.Field:
				ok, err := c.included(s.Directives)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				rk := keys.ResponseKey(s)
				if cf, ok := index[rk]; ok {
					cf.selections = append(cf.selections, s.SelectionSet...)
					cf.fromFragment = cf.fromFragment && inFragment
					continue
				}
				cf := &collectedField{
					field:        s,
					responseKey:  rk,
					selections:   append(ast.SelectionSet(nil), s.SelectionSet...),
					fromFragment: inFragment,
				}
				index[rk] = cf
				fields = append(fields, cf)

			case *ast.InlineFragment:
				ok, err := c.included(s.Directives)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := walk(s.SelectionSet, true); err != nil {
					return err
				}

			case *ast.FragmentSpread:
				ok, err := c.included(s.Directives)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				def := c.fragments.ForName(s.Name)
				if def == nil {
					return &x.MissingFragmentError{Name: s.Name}
				}
				// A spread cycle is invalid GraphQL, expanding it once is enough.
				if visiting[s.Name] {
					continue
				}
				visiting[s.Name] = true
				err = walk(def.SelectionSet, true)
				visiting[s.Name] = false
				if err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(set, false); err != nil {
		return nil, err
	}
	return fields, nil
}

// included evaluates @skip and @include.
func (c *collector) included(dirs ast.DirectiveList) (bool, error) {
	if d := dirs.ForName("skip"); d != nil {
		if arg := d.Arguments.ForName("if"); arg != nil {
			skip, err := keys.ResolveBool(arg.Value, c.vars)
			if err != nil {
				return false, err
			}
			if skip {
				return false, nil
			}
		}
	}
	if d := dirs.ForName("include"); d != nil {
		if arg := d.Arguments.ForName("if"); arg != nil {
			return keys.ResolveBool(arg.Value, c.vars)
		}
	}
	return true, nil
}
