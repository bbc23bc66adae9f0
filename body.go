// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package routeros

import (
	"fmt"
	"strings"

	"github.com/tidwall/sjson"
)

// Body provides a fluent interface for building RouterOS API request
// sentences. The builder produces the ordered word sequence sent on
// the wire and, in parallel, maintains a JSON document (via sjson)
// that mirrors the request for inspection and logging.
//
// The Body builder tracks errors internally to enable method chaining
// while providing error checking through Words() or Err().
//
// Example:
//
//	q := routeros.Body{}.
//	    Command("/interface/print").
//	    Proplist(".id", "name", "mtu").
//	    Where("type", "ether")
//
//	res, err := client.Run(ctx, q)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Body struct {
	// str contains the JSON mirror of the request being built
	str string
	// words contains the wire words in send order
	words []string
	// err tracks the first error encountered during building
	err error
}

// Command sets the command word. It must be the first call on a Body
// and the word must begin with '/'.
//
// Example:
//
//	q := routeros.Body{}.Command("/system/identity/print")
//
// Returns the Body for method chaining.
func (b Body) Command(word string) Body {
	if b.err != nil {
		return b
	}
	if len(b.words) > 0 {
		return b.fail("Command(%q): command must be the first word", word)
	}
	if !strings.HasPrefix(word, "/") {
		return b.fail("Command(%q): command word must begin with '/'", word)
	}
	return b.push("command", word, word)
}

// Attr appends an =name=value attribute word. The name must not
// contain '='; the value may contain any byte and is rendered with %v
// for non-string types.
//
// Example:
//
//	q := routeros.Body{}.
//	    Command("/interface/set").
//	    Attr(".id", "*1").
//	    Attr("mtu", 9000).
//	    Attr("disabled", false)
//
// Returns the Body for method chaining.
func (b Body) Attr(name string, value any) Body {
	if b.err != nil {
		return b
	}
	if name == "" || strings.Contains(name, "=") {
		return b.fail("Attr(%q): attribute name must be non-empty and free of '='", name)
	}
	rendered := fmt.Sprintf("%v", value)
	return b.push("attributes."+pathEscape(name), value, "="+name+"="+rendered)
}

// Where appends a ?name=value query word restricting a print command.
//
// Example:
//
//	q := routeros.Body{}.
//	    Command("/ip/address/print").
//	    Where("interface", "ether1")
//
// Returns the Body for method chaining.
func (b Body) Where(name, value string) Body {
	if b.err != nil {
		return b
	}
	if name == "" || strings.Contains(name, "=") {
		return b.fail("Where(%q): query name must be non-empty and free of '='", name)
	}
	return b.push("query."+pathEscape(name), value, "?"+name+"="+value)
}

// Proplist restricts the attributes returned by a print command,
// emitting the =.proplist= attribute word.
//
// Returns the Body for method chaining.
func (b Body) Proplist(names ...string) Body {
	if b.err != nil {
		return b
	}
	if len(names) == 0 {
		return b.fail("Proplist: at least one property name required")
	}
	joined := strings.Join(names, ",")
	return b.push("proplist", names, "=.proplist="+joined)
}

// Tag appends a .tag= word. The engine does not interpret tags; the
// device echoes them on the matching reply sentences and they surface
// in Reply.Tags.
//
// Returns the Body for method chaining.
func (b Body) Tag(value string) Body {
	if b.err != nil {
		return b
	}
	return b.push("tag", value, tagWordPrefix+value)
}

// Words returns the ordered wire words and any error encountered
// during building. A Body without a command word is incomplete.
//
// Example:
//
//	words, err := routeros.Body{}.Command("/login").Words()
//	if err != nil {
//	    log.Fatal(err)
//	}
func (b Body) Words() ([]string, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.words) == 0 {
		return nil, errMisuse("build", "request has no command word")
	}
	out := make([]string, len(b.words))
	copy(out, b.words)
	return out, nil
}

// Err returns any error that occurred during the building process.
func (b Body) Err() error {
	return b.err
}

// JSON returns the JSON mirror of the request for inspection with
// gjson. If an error occurred during building, this returns an empty
// string; use Err() to check.
//
// Example:
//
//	q := routeros.Body{}.Command("/interface/print").Where("type", "ether")
//	cmd := gjson.Get(q.JSON(), "command").String()
func (b Body) JSON() string {
	if b.err != nil {
		return ""
	}
	return b.str
}

// push records a builder step in both representations.
func (b Body) push(path string, value any, word string) Body {
	str, err := sjson.Set(b.str, path, value)
	if err != nil {
		return Body{str: b.str, words: b.words, err: fmt.Errorf("set %q: %w", path, err)}
	}
	words := make([]string, len(b.words), len(b.words)+1)
	copy(words, b.words)
	return Body{str: str, words: append(words, word)}
}

func (b Body) fail(format string, args ...any) Body {
	return Body{str: b.str, words: b.words, err: errMisuse("build", fmt.Sprintf(format, args...))}
}

// pathEscape escapes gjson/sjson path metacharacters in attribute
// names such as ".id" so they address a single flat key.
func pathEscape(name string) string {
	var builder strings.Builder
	builder.Grow(len(name))
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '.', '*', '?', '\\', '|', '#', '@':
			builder.WriteByte('\\')
		}
		builder.WriteByte(name[i])
	}
	return builder.String()
}
