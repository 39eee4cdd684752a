package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Quantity holds a numeric field exactly as it arrived. Chains and indexers
// disagree on the encoding: decimal strings, 0x hex strings and bare JSON
// numbers all occur. Bare numbers keep their literal text so values beyond
// 2^53 are not rounded through float64.
type Quantity string

// UnmarshalJSON accepts a string, a number literal or null.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*q = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*q = Quantity(data)
	default:
		return fmt.Errorf("quantity: unexpected JSON value %s", data)
	}
	return nil
}

// UnmarshalYAML accepts any scalar; the raw scalar text is kept.
func (q *Quantity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("quantity: line %d: expected a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*q = ""
		return nil
	}
	*q = Quantity(node.Value)
	return nil
}

// String returns the trimmed raw text.
func (q Quantity) String() string {
	return strings.TrimSpace(string(q))
}

// Empty reports whether the field was absent or blank.
func (q Quantity) Empty() bool {
	return q.String() == ""
}

// Uint64 parses a small counter such as a block number or claim number.
func (q Quantity) Uint64() (uint64, error) {
	s := q.String()
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// Int64 parses a signed counter such as a unix timestamp.
func (q Quantity) Int64() (int64, error) {
	return strconv.ParseInt(q.String(), 10, 64)
}
