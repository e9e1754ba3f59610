/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package graph

import (
	"encoding/json"
)

// Clone returns a deep copy of a JSON-like value so the store never aliases memory owned
// by the caller. Maps and slices of interface{} are copied recursively, primitives are
// returned as is, and any other composite value goes through a JSON round trip.
func Clone(v interface{}) interface{} {
	switch v := v.(type) {
	case nil, bool, string, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return v
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = Clone(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Clone(item)
		}
		return out
	}

	b, err := json.Marshal(v)
	if err != nil {
		// Not representable as JSON, nothing sensible to copy.
		return v
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
