package nfcom

import (
	"encoding/xml"
	"strings"
)

// element is an untyped XML node. The extractor walks the tree with
// option-style lookups (value, ok) instead of nil checks at every call
// site; every field of the fiscal dialect is optional at some level.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Chardata string     `xml:",chardata"`
	Children []element  `xml:",any"`
}

func parse(raw []byte) (*element, error) {
	var root element
	if err := xml.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

func (e *element) is(space, local string) bool {
	return e.XMLName.Local == local && e.XMLName.Space == space
}

func (e *element) text() string {
	return strings.TrimSpace(e.Chardata)
}

func (e *element) attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// child returns the first direct child matching space+local.
func (e *element) child(space, local string) (*element, bool) {
	for i := range e.Children {
		if e.Children[i].is(space, local) {
			return &e.Children[i], true
		}
	}
	return nil, false
}

// children returns all direct children matching space+local.
func (e *element) children(space, local string) []*element {
	var out []*element
	for i := range e.Children {
		if e.Children[i].is(space, local) {
			out = append(out, &e.Children[i])
		}
	}
	return out
}

// descendant returns the first matching node below e in document order.
func (e *element) descendant(space, local string) (*element, bool) {
	for i := range e.Children {
		c := &e.Children[i]
		if c.is(space, local) {
			return c, true
		}
		if found, ok := c.descendant(space, local); ok {
			return found, true
		}
	}
	return nil, false
}

// descendants returns all matching nodes below e in document order.
func (e *element) descendants(space, local string) []*element {
	var out []*element
	for i := range e.Children {
		c := &e.Children[i]
		if c.is(space, local) {
			out = append(out, c)
		}
		out = append(out, c.descendants(space, local)...)
	}
	return out
}

// childText returns the trimmed text of the first matching child; ok
// reports whether the child exists at all (an empty element yields
// "" with ok=true).
func (e *element) childText(space, local string) (string, bool) {
	c, ok := e.child(space, local)
	if !ok {
		return "", false
	}
	return c.text(), true
}

// childTextDefault mirrors findtext-with-default: the fallback applies
// only when the child is absent, not when it is empty.
func (e *element) childTextDefault(space, local, fallback string) string {
	if text, ok := e.childText(space, local); ok {
		return text
	}
	return fallback
}
