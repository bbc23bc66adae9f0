// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package routeros

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ReplyKind identifies the terminating sentence of a reply.
type ReplyKind string

const (
	// ReplyDone indicates the reply completed without error.
	ReplyDone ReplyKind = "done"

	// ReplyTrap indicates the device reported a recoverable error.
	// The connection remains usable.
	ReplyTrap ReplyKind = "trap"

	// ReplyFatal indicates the device terminated the connection.
	ReplyFatal ReplyKind = "fatal"
)

// Reply represents a parsed RouterOS API reply.
type Reply struct {
	// Rows contains one attribute map per !re sentence, in wire order.
	Rows []map[string]string

	// Trailer contains the attributes of the terminating sentence.
	// During legacy login this carries the "ret" challenge.
	Trailer map[string]string

	// Tags contains the values of any .tag= words, surfaced verbatim.
	Tags []string

	// Kind is the terminator classification.
	Kind ReplyKind

	// OK indicates the reply terminated with !done and no trap.
	OK bool
}

// GetValue retrieves a value from the reply using a gjson path.
// The path follows gjson syntax for querying JSON structures.
//
// Example paths:
//   - "rows.0.name" - name attribute of the first row
//   - "rows.#" - number of rows
//   - "trailer.message" - trap message
//
// Returns gjson.Result which can be converted to specific types:
//   - result.String() for string values
//   - result.Int() for integer values
//   - result.Exists() to test presence
//
// Example:
//
//	res, err := client.Run(ctx, routeros.Body{}.Command("/interface/print"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	first := res.GetValue("rows.0.name").String()
func (r Reply) GetValue(path string) gjson.Result {
	jsonStr := r.JSON()
	if jsonStr == "" {
		return gjson.Result{}
	}
	return gjson.Get(jsonStr, path)
}

// JSON returns the reply as a JSON string. This is useful for
// debugging, logging, or custom parsing. Returns an empty string if
// marshaling fails.
//
// Example:
//
//	res, err := client.Run(ctx, routeros.Body{}.Command("/system/resource/print"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.JSON())
func (r Reply) JSON() string {
	wrapper := struct {
		Rows    []map[string]string `json:"rows"`
		Trailer map[string]string   `json:"trailer"`
		Tags    []string            `json:"tags,omitempty"`
		Kind    ReplyKind           `json:"kind"`
		OK      bool                `json:"ok"`
	}{
		Rows:    r.Rows,
		Trailer: r.Trailer,
		Tags:    r.Tags,
		Kind:    r.Kind,
		OK:      r.OK,
	}

	data, err := json.Marshal(wrapper)
	if err != nil {
		return ""
	}
	return string(data)
}
