package parliament

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AttrGetter exposes named attributes for path navigation.
type AttrGetter interface {
	GetAttr(name string) (any, error)
}

// AttrSetter assigns a JSON-encoded value to a named attribute.
type AttrSetter interface {
	SetAttr(name string, raw json.RawMessage) error
}

// IndexGetter exposes elements addressed by integer or text index.
type IndexGetter interface {
	GetIndex(key IndexKey) (any, error)
}

// IndexResolver is implemented by containers that accept more than one index
// form for the same element. ResolveIndex returns the single form under which
// writes to that element are recorded and ordered.
type IndexResolver interface {
	ResolveIndex(key IndexKey) (IndexKey, error)
}

// IndexSetter assigns a JSON-encoded value to an indexed element.
type IndexSetter interface {
	SetIndex(key IndexKey, raw json.RawMessage) error
}

// Object is a business object that can be archived.
// ValidateAttr names the attribute whose value identifies the object within
// its class (for a task, "id").
type Object interface {
	AttrGetter
	AttrSetter
	ClassName() string
	ValidateAttr() string
}

// Key identifies an archive: (class, validating attribute, its value).
type Key struct {
	Class string `json:"class" yaml:"class"`
	Attr  string `json:"attr" yaml:"attr"`
	Value string `json:"value" yaml:"value"`
}

// String renders the key as class/attr/value.
func (k Key) String() string {
	return k.Class + "/" + k.Attr + "/" + k.Value
}

// ParseKey parses the class/attr/value form produced by Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Key{}, fmt.Errorf("invalid archive key %q: expected class/attr/value", s)
	}
	return Key{Class: parts[0], Attr: parts[1], Value: parts[2]}, nil
}

// KeyOf derives the archive key of obj from its validating attribute.
func KeyOf(obj Object) (Key, error) {
	v, err := obj.GetAttr(obj.ValidateAttr())
	if err != nil {
		return Key{}, fmt.Errorf("failed to read validating attribute %q of %s: %w", obj.ValidateAttr(), obj.ClassName(), err)
	}
	return Key{Class: obj.ClassName(), Attr: obj.ValidateAttr(), Value: fmt.Sprint(v)}, nil
}
