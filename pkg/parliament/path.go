package parliament

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SegmentKind tags a path segment as attribute or index access.
type SegmentKind uint8

const (
	// SegmentAttr descends through a named attribute.
	SegmentAttr SegmentKind = iota + 1
	// SegmentIndex descends through an integer or text index.
	SegmentIndex
)

// IndexKey is an index that is either text or an integer.
type IndexKey struct {
	Text   string
	Pos    int
	IsText bool
}

// TextIndex returns a text index key.
func TextIndex(s string) IndexKey { return IndexKey{Text: s, IsText: true} }

// IntIndex returns an integer index key.
func IntIndex(i int) IndexKey { return IndexKey{Pos: i} }

// String renders the key in bracket form without the brackets: 'abc' or 12.
func (k IndexKey) String() string {
	if k.IsText {
		return "'" + k.Text + "'"
	}
	return strconv.Itoa(k.Pos)
}

// MarshalJSON encodes text keys as JSON strings and integer keys as numbers,
// so the distinction survives the wire.
func (k IndexKey) MarshalJSON() ([]byte, error) {
	if k.IsText {
		return json.Marshal(k.Text)
	}
	return json.Marshal(k.Pos)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (k *IndexKey) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = TextIndex(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("index key must be a string or integer: %w", err)
	}
	*k = IntIndex(n)
	return nil
}

// Segment is one step of a path: Attr(name) or Index(key).
type Segment struct {
	Kind  SegmentKind
	Name  string
	Index IndexKey
}

// Attr returns an attribute segment.
func Attr(name string) Segment { return Segment{Kind: SegmentAttr, Name: name} }

// Index returns an index segment.
func Index(key IndexKey) Segment { return Segment{Kind: SegmentIndex, Index: key} }

type segmentJSON struct {
	Attr  *string   `json:"attr,omitempty"`
	Index *IndexKey `json:"index,omitempty"`
}

// MarshalJSON encodes the segment as {"attr": name} or {"index": key}.
func (s Segment) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SegmentAttr:
		name := s.Name
		return json.Marshal(segmentJSON{Attr: &name})
	case SegmentIndex:
		key := s.Index
		return json.Marshal(segmentJSON{Index: &key})
	default:
		return nil, fmt.Errorf("invalid segment kind %d", s.Kind)
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw segmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Attr != nil && raw.Index == nil:
		*s = Attr(*raw.Attr)
	case raw.Index != nil && raw.Attr == nil:
		*s = Index(*raw.Index)
	default:
		return fmt.Errorf("segment must carry exactly one of attr or index")
	}
	return nil
}

// Path is a sequence of segments, e.g. .pods['worker-0'].status.
type Path []Segment

// String renders the canonical expression for the path.
func (p Path) String() string {
	var b strings.Builder
	for _, s := range p {
		if s.Kind == SegmentAttr {
			b.WriteByte('.')
			b.WriteString(s.Name)
			continue
		}
		b.WriteByte('[')
		b.WriteString(s.Index.String())
		b.WriteByte(']')
	}
	return b.String()
}

// Root returns the attribute name of the first segment, or "" when the path
// does not start with an attribute.
func (p Path) Root() string {
	if len(p) == 0 || p[0].Kind != SegmentAttr {
		return ""
	}
	return p[0].Name
}

// ParsePath parses a leading-dot/bracket expression such as
// .status['123'][1].value.
//
// The scanner stops at the next '.' or '['; the token minus its leading
// delimiter is the segment key. A bracket token that begins with a quote is a
// text index (quotes stripped); any other bracket token must be an integer.
func ParsePath(expr string) (Path, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty path expression")
	}
	var path Path
	i := 0
	for i < len(expr) {
		switch expr[i] {
		case '.':
			j := i + 1
			for j < len(expr) && expr[j] != '.' && expr[j] != '[' {
				j++
			}
			name := expr[i+1 : j]
			if name == "" {
				return nil, fmt.Errorf("empty attribute name at offset %d in %q", i, expr)
			}
			path = append(path, Attr(name))
			i = j
		case '[':
			next, key, err := scanIndex(expr, i)
			if err != nil {
				return nil, err
			}
			path = append(path, Index(key))
			i = next
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d in %q: segments start with '.' or '['", expr[i], i, expr)
		}
	}
	return path, nil
}

// scanIndex parses the bracket token starting at expr[start] == '['.
// It returns the offset just past the closing bracket.
func scanIndex(expr string, start int) (int, IndexKey, error) {
	j := start + 1
	if j < len(expr) && (expr[j] == '\'' || expr[j] == '"') {
		quote := expr[j]
		k := strings.IndexByte(expr[j+1:], quote)
		if k < 0 {
			return 0, IndexKey{}, fmt.Errorf("unterminated quoted index at offset %d in %q", start, expr)
		}
		end := j + 1 + k + 1
		if end >= len(expr) || expr[end] != ']' {
			return 0, IndexKey{}, fmt.Errorf("missing ']' after quoted index at offset %d in %q", start, expr)
		}
		return end + 1, TextIndex(expr[j+1 : j+1+k]), nil
	}

	k := strings.IndexByte(expr[j:], ']')
	if k < 0 {
		return 0, IndexKey{}, fmt.Errorf("missing ']' at offset %d in %q", start, expr)
	}
	token := strings.TrimSpace(expr[j : j+k])
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, IndexKey{}, fmt.Errorf("index %q at offset %d is neither quoted text nor an integer", token, start)
	}
	return j + k + 1, IntIndex(n), nil
}

// Descriptor is a path plus the value to assign at its terminal segment.
//
// Timestamp is nil while the change is locally originated and carries the
// order token assigned by the system of record once it is relayed.
type Descriptor struct {
	Path      Path            `json:"path"`
	Value     json.RawMessage `json:"value"`
	Timestamp *int64          `json:"timestamp,omitempty"`
}

// Encode parses expr and pairs it with the JSON encoding of value.
func Encode(expr string, value any) (*Descriptor, error) {
	path, err := ParsePath(expr)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value for %s: %w", expr, err)
	}
	return &Descriptor{Path: path, Value: raw}, nil
}

// Relayed reports whether the descriptor carries an authoritative order token.
func (d *Descriptor) Relayed() bool {
	return d.Timestamp != nil
}

// Stamp records the order token assigned to this change.
func (d *Descriptor) Stamp(order int64) {
	d.Timestamp = &order
}

// Lookup walks path from root and returns the value it reaches.
func Lookup(root any, path Path) (any, error) {
	cur := root
	for i, seg := range path {
		next, err := step(cur, seg)
		if err != nil {
			return nil, fmt.Errorf("%s (segment %d): %w", path[:i+1], i, err)
		}
		cur = next
	}
	return cur, nil
}

// Canonical returns path with every index segment rewritten to the form its
// container resolves it to, so two spellings of the same field share one
// record and one order history. Containers that are not IndexResolvers keep
// their index as written.
func Canonical(root any, path Path) (Path, error) {
	out := make(Path, len(path))
	cur := root
	for i, seg := range path {
		if seg.Kind == SegmentIndex {
			if r, ok := cur.(IndexResolver); ok {
				key, err := r.ResolveIndex(seg.Index)
				if err != nil {
					return nil, fmt.Errorf("%s (segment %d): %w", path[:i+1], i, err)
				}
				seg = Index(key)
			}
		}
		out[i] = seg
		if i == len(path)-1 {
			break
		}
		next, err := step(cur, seg)
		if err != nil {
			return nil, fmt.Errorf("%s (segment %d): %w", path[:i+1], i, err)
		}
		cur = next
	}
	return out, nil
}

func step(cur any, seg Segment) (any, error) {
	switch seg.Kind {
	case SegmentAttr:
		g, ok := cur.(AttrGetter)
		if !ok {
			return nil, fmt.Errorf("%w: %T has no attribute %q", ErrNavigation, cur, seg.Name)
		}
		return g.GetAttr(seg.Name)
	case SegmentIndex:
		g, ok := cur.(IndexGetter)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not indexable", ErrNavigation, cur)
		}
		return g.GetIndex(seg.Index)
	default:
		return nil, fmt.Errorf("%w: invalid segment kind %d", ErrNavigation, seg.Kind)
	}
}

// DecodeAndApply descends root along every non-terminal segment of d and then
// assigns d.Value at the terminal segment.
func DecodeAndApply(root any, d *Descriptor) error {
	if len(d.Path) == 0 {
		return fmt.Errorf("%w: empty path", ErrNavigation)
	}
	last := len(d.Path) - 1
	parent, err := Lookup(root, d.Path[:last])
	if err != nil {
		return err
	}

	seg := d.Path[last]
	switch seg.Kind {
	case SegmentAttr:
		s, ok := parent.(AttrSetter)
		if !ok {
			return fmt.Errorf("%w: %s: %T has no settable attribute %q", ErrNavigation, d.Path, parent, seg.Name)
		}
		if err := s.SetAttr(seg.Name, d.Value); err != nil {
			return fmt.Errorf("%s: %w", d.Path, err)
		}
	case SegmentIndex:
		s, ok := parent.(IndexSetter)
		if !ok {
			return fmt.Errorf("%w: %s: %T has no settable index", ErrNavigation, d.Path, parent)
		}
		if err := s.SetIndex(seg.Index, d.Value); err != nil {
			return fmt.Errorf("%s: %w", d.Path, err)
		}
	default:
		return fmt.Errorf("%w: invalid segment kind %d", ErrNavigation, seg.Kind)
	}
	return nil
}
