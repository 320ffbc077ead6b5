// Package save is the generic save/load contract. Values are written as named
// scalars, objects and lists into a YAML node tree; every saveable type
// implements an explicit Save/Load pair against Encoder and Decoder.
package save

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Saver is implemented by everything that can be written to a save document.
type Saver interface {
	Save(e *Encoder)
}

// Loader is implemented (on the pointer) by everything that can be reread.
type Loader interface {
	Load(d *Decoder)
}

// Encoder appends named values to one YAML mapping node.
type Encoder struct {
	node *yaml.Node
}

func NewEncoder() *Encoder {
	return &Encoder{node: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}}
}

// Node returns the mapping built so far.
func (e *Encoder) Node() *yaml.Node { return e.node }

func (e *Encoder) put(key string, v *yaml.Node) {
	e.node.Content = append(e.node.Content, scalar("!!str", key), v)
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func (e *Encoder) Int(key string, v int) {
	e.put(key, scalar("!!int", strconv.Itoa(v)))
}

func (e *Encoder) Uint64(key string, v uint64) {
	e.put(key, scalar("!!int", strconv.FormatUint(v, 10)))
}

func (e *Encoder) Bool(key string, v bool) {
	e.put(key, scalar("!!bool", strconv.FormatBool(v)))
}

func (e *Encoder) String(key string, v string) {
	e.put(key, scalar("!!str", v))
}

// Ints writes a flow-style integer list.
func (e *Encoder) Ints(key string, v []int) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, x := range v {
		seq.Content = append(seq.Content, scalar("!!int", strconv.Itoa(x)))
	}
	e.put(key, seq)
}

func (e *Encoder) Uint64s(key string, v []uint64) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, x := range v {
		seq.Content = append(seq.Content, scalar("!!int", strconv.FormatUint(x, 10)))
	}
	e.put(key, seq)
}

// Object writes a nested mapping filled by fn.
func (e *Encoder) Object(key string, fn func(*Encoder)) {
	child := NewEncoder()
	fn(child)
	e.put(key, child.node)
}

// Value writes a Saver as a nested mapping.
func (e *Encoder) Value(key string, v Saver) {
	e.Object(key, v.Save)
}

// List writes n mappings, each filled by fn.
func (e *Encoder) List(key string, n int, fn func(i int, e *Encoder)) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for i := 0; i < n; i++ {
		child := NewEncoder()
		fn(i, child)
		seq.Content = append(seq.Content, child.node)
	}
	e.put(key, seq)
}

// WarnFunc is told about keys present in the document that no Load consumed.
type WarnFunc func(path, key string)

type decodeState struct {
	err  error
	warn WarnFunc
}

// Decoder reads named values from one YAML mapping node. Missing keys leave
// the destination untouched; the first malformed value is recorded and
// reported by Err/Finish, after which reads are no-ops.
type Decoder struct {
	node  *yaml.Node
	path  string
	used  map[string]bool
	state *decodeState
}

// NewDecoder wraps a mapping (or a document holding one).
func NewDecoder(node *yaml.Node, warn WarnFunc) (*Decoder, error) {
	if node != nil && node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("save: root is not a mapping")
	}
	if warn == nil {
		warn = func(string, string) {}
	}
	return newChild(node, "", &decodeState{warn: warn}), nil
}

func newChild(node *yaml.Node, path string, st *decodeState) *Decoder {
	return &Decoder{node: node, path: path, used: make(map[string]bool), state: st}
}

// Path is the dotted location of this mapping inside the document.
func (d *Decoder) Path() string { return d.path }

func (d *Decoder) childPath(key string) string {
	if d.path == "" {
		return key
	}
	return d.path + "." + key
}

func (d *Decoder) lookup(key string) *yaml.Node {
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		if d.node.Content[i].Value == key {
			d.used[key] = true
			return d.node.Content[i+1]
		}
	}
	return nil
}

func (d *Decoder) fail(key string, err error) {
	if d.state.err == nil {
		d.state.err = fmt.Errorf("save: %s: %w", d.childPath(key), err)
	}
}

// Has reports whether key is present.
func (d *Decoder) Has(key string) bool {
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		if d.node.Content[i].Value == key {
			return true
		}
	}
	return false
}

func (d *Decoder) decode(key string, dst any) {
	if d.state.err != nil {
		return
	}
	n := d.lookup(key)
	if n == nil {
		return
	}
	if err := n.Decode(dst); err != nil {
		d.fail(key, err)
	}
}

func (d *Decoder) Int(key string, dst *int)          { d.decode(key, dst) }
func (d *Decoder) Uint64(key string, dst *uint64)    { d.decode(key, dst) }
func (d *Decoder) Bool(key string, dst *bool)        { d.decode(key, dst) }
func (d *Decoder) String(key string, dst *string)    { d.decode(key, dst) }
func (d *Decoder) Ints(key string, dst *[]int)       { d.decode(key, dst) }
func (d *Decoder) Uint64s(key string, dst *[]uint64) { d.decode(key, dst) }

func (d *Decoder) mapping(key string, n *yaml.Node) bool {
	if n.Kind != yaml.MappingNode {
		d.fail(key, fmt.Errorf("expected mapping, got %s", kindName(n.Kind)))
		return false
	}
	return true
}

// Object decodes a nested mapping with fn, then reports its unread keys.
func (d *Decoder) Object(key string, fn func(*Decoder)) {
	if d.state.err != nil {
		return
	}
	n := d.lookup(key)
	if n == nil || !d.mapping(key, n) {
		return
	}
	child := newChild(n, d.childPath(key), d.state)
	fn(child)
	child.reportUnused()
}

// Value decodes a nested mapping into a Loader.
func (d *Decoder) Value(key string, v Loader) {
	d.Object(key, v.Load)
}

// List decodes a sequence of mappings.
func (d *Decoder) List(key string, fn func(i int, d *Decoder)) {
	if d.state.err != nil {
		return
	}
	n := d.lookup(key)
	if n == nil {
		return
	}
	if n.Kind != yaml.SequenceNode {
		d.fail(key, fmt.Errorf("expected list, got %s", kindName(n.Kind)))
		return
	}
	for i, item := range n.Content {
		if d.state.err != nil {
			return
		}
		ik := key + "[" + strconv.Itoa(i) + "]"
		if !d.mapping(ik, item) {
			return
		}
		child := newChild(item, d.childPath(ik), d.state)
		fn(i, child)
		child.reportUnused()
	}
}

// Entries visits every key of the mapping in document order with a decoder
// for its value, which must itself be a mapping. Unread keys of each entry
// are reported.
func (d *Decoder) Entries(fn func(key string, d *Decoder)) {
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		if d.state.err != nil {
			return
		}
		key := d.node.Content[i].Value
		d.used[key] = true
		n := d.node.Content[i+1]
		if !d.mapping(key, n) {
			return
		}
		child := newChild(n, d.childPath(key), d.state)
		fn(key, child)
		child.reportUnused()
	}
}

// Skip marks key as deliberately ignored so it is not reported as unknown.
func (d *Decoder) Skip(key string) { d.used[key] = true }

// SkipAll marks every key of this mapping as ignored.
func (d *Decoder) SkipAll() {
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		d.used[d.node.Content[i].Value] = true
	}
}

// Warn forwards a message about key to the document's warning sink.
func (d *Decoder) Warn(key string) { d.state.warn(d.path, key) }

// Fail records a semantic error found by a Load implementation.
func (d *Decoder) Fail(key string, err error) { d.fail(key, err) }

func (d *Decoder) reportUnused() {
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		key := d.node.Content[i].Value
		if !d.used[key] {
			d.state.warn(d.path, key)
		}
	}
}

// Err returns the first decoding error, if any.
func (d *Decoder) Err() error { return d.state.err }

// Finish reports unread top-level keys and returns the first error.
func (d *Decoder) Finish() error {
	if d.state.err == nil {
		d.reportUnused()
	}
	return d.state.err
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "list"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
