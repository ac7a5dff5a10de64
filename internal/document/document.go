// Package document builds the nested, unit-normalized JSON document published
// for every station reading.
//
// A Document is a tree: interior nodes are branches keyed by path segment and
// leaves hold a typed Scalar. Insert only ever sets the leaf at the exact
// target path, so sibling branches inserted earlier are never touched.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrPathConflict is returned when an insertion would turn a leaf into a
// branch or a branch into a leaf.
var ErrPathConflict = errors.New("document: path conflict")

// ErrInvalidPath is returned for empty paths or paths with empty segments.
var ErrInvalidPath = errors.New("document: invalid path")

type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "invalid"
	}
}

// Scalar is a leaf value. The zero Scalar is invalid and cannot be inserted.
type Scalar struct {
	kind Kind
	s    string
	i    int64
	f    float64
}

func String(v string) Scalar { return Scalar{kind: KindString, s: v} }

func Int(v int64) Scalar { return Scalar{kind: KindInt, i: v} }

func Float(v float64) Scalar { return Scalar{kind: KindFloat, f: v} }

func (s Scalar) Kind() Kind { return s.kind }

func (s Scalar) AsString() string { return s.s }

func (s Scalar) AsInt() int64 { return s.i }

func (s Scalar) AsFloat() float64 { return s.f }

// Interface returns the scalar as a plain Go value (string, int64 or float64).
func (s Scalar) Interface() any {
	switch s.kind {
	case KindString:
		return s.s
	case KindInt:
		return s.i
	case KindFloat:
		return s.f
	default:
		return nil
	}
}

// MarshalJSON keeps floats recognizable as floats: 10 is written as 10.0.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindString:
		return json.Marshal(s.s)
	case KindInt:
		return strconv.AppendInt(nil, s.i, 10), nil
	case KindFloat:
		if math.IsNaN(s.f) || math.IsInf(s.f, 0) {
			return nil, fmt.Errorf("document: unsupported float value %v", s.f)
		}
		b := strconv.AppendFloat(nil, s.f, 'f', -1, 64)
		if !bytes.ContainsRune(b, '.') {
			b = append(b, '.', '0')
		}
		return b, nil
	default:
		return nil, fmt.Errorf("document: invalid scalar")
	}
}

// node is either a branch (children != nil) or a leaf.
type node struct {
	children map[string]*node
	leaf     Scalar
}

func (n *node) isBranch() bool { return n.children != nil }

type Document struct {
	root *node
}

func New() *Document {
	return &Document{root: &node{children: make(map[string]*node)}}
}

// Insert sets the leaf at the dotted path, creating intermediate branches.
func (d *Document) Insert(path string, v Scalar) error {
	if v.kind == 0 {
		return fmt.Errorf("insert %q: invalid scalar", path)
	}
	segments, err := split(path)
	if err != nil {
		return err
	}

	cur := d.root
	for i, seg := range segments[:len(segments)-1] {
		next, ok := cur.children[seg]
		if !ok {
			next = &node{children: make(map[string]*node)}
			cur.children[seg] = next
		} else if !next.isBranch() {
			return fmt.Errorf("%w: %q is a leaf", ErrPathConflict, strings.Join(segments[:i+1], "."))
		}
		cur = next
	}

	last := segments[len(segments)-1]
	if existing, ok := cur.children[last]; ok && existing.isBranch() {
		return fmt.Errorf("%w: %q is a branch", ErrPathConflict, path)
	}
	cur.children[last] = &node{leaf: v}
	return nil
}

// Get returns the leaf at path.
func (d *Document) Get(path string) (Scalar, bool) {
	segments, err := split(path)
	if err != nil {
		return Scalar{}, false
	}
	cur := d.root
	for _, seg := range segments {
		if !cur.isBranch() {
			return Scalar{}, false
		}
		next, ok := cur.children[seg]
		if !ok {
			return Scalar{}, false
		}
		cur = next
	}
	if cur.isBranch() {
		return Scalar{}, false
	}
	return cur.leaf, true
}

// Paths lists every leaf path in sorted order.
func (d *Document) Paths() []string {
	var out []string
	var walk func(prefix string, n *node)
	walk = func(prefix string, n *node) {
		for k, child := range n.children {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			if child.isBranch() {
				walk(p, child)
				continue
			}
			out = append(out, p)
		}
	}
	walk("", d.root)
	sort.Strings(out)
	return out
}

// Map returns the document as nested map[string]any with plain leaf values.
func (d *Document) Map() map[string]any {
	return toMap(d.root)
}

func toMap(n *node) map[string]any {
	out := make(map[string]any, len(n.children))
	for k, child := range n.children {
		if child.isBranch() {
			out[k] = toMap(child)
		} else {
			out[k] = child.leaf.Interface()
		}
	}
	return out
}

func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, d.root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, n *node) error {
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		child := n.children[k]
		if child.isBranch() {
			if err := encode(buf, child); err != nil {
				return err
			}
			continue
		}
		vb, err := child.leaf.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return nil
}

func split(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}
