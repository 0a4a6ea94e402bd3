package tmx

import (
	"encoding/xml"
	"io"
	"strings"
)

// EventKind identifies the structural events a Walker produces.
type EventKind int

const (
	// StartElement is an opening tag, carrying its attributes.
	StartElement EventKind = iota
	// EndElement is a closing tag. Self-closing elements produce a
	// StartElement immediately followed by an EndElement.
	EndElement
	// Text is non-whitespace character data between tags.
	Text
)

// Attr is a single element attribute.
type Attr struct {
	Name  string
	Value string
}

// Event is one structural event in document order.
type Event struct {
	Kind  EventKind
	Name  string
	Attrs []Attr
	Text  string
}

// Attr returns the named attribute's value and whether it was present.
func (e *Event) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Walker is a lazy, forward-only cursor over the structural events of an XML
// document. A walker is single-use; construct a fresh one per parse. It does
// not validate TMX structure, only XML well-formedness.
type Walker struct {
	dec  *xml.Decoder
	done bool
}

// NewWalker returns a walker positioned before the first event of input.
func NewWalker(input string) *Walker {
	dec := xml.NewDecoder(strings.NewReader(input))
	dec.Strict = true
	return &Walker{dec: dec}
}

// Next advances the cursor and returns the next event, or (nil, nil) once
// the document is exhausted. Malformed markup surfaces as ErrMalformedXML.
func (w *Walker) Next() (*Event, error) {
	if w.done {
		return nil, nil
	}
	for {
		tok, err := w.dec.Token()
		if err == io.EOF {
			w.done = true
			return nil, nil
		}
		if err != nil {
			w.done = true
			return nil, malformedXML(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			ev := &Event{Kind: StartElement, Name: t.Name.Local}
			if len(t.Attr) > 0 {
				ev.Attrs = make([]Attr, 0, len(t.Attr))
				for _, a := range t.Attr {
					ev.Attrs = append(ev.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
				}
			}
			return ev, nil
		case xml.EndElement:
			return &Event{Kind: EndElement, Name: t.Name.Local}, nil
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			return &Event{Kind: Text, Text: text}, nil
		default:
			// Comments, directives and processing instructions carry no
			// TMX content.
			continue
		}
	}
}

// skip consumes events until the element named name (already started) is
// closed, including any nested elements.
func (w *Walker) skip(name string) error {
	depth := 1
	for {
		ev, err := w.Next()
		if err != nil {
			return err
		}
		if ev == nil {
			return malformedXML(io.ErrUnexpectedEOF)
		}
		switch ev.Kind {
		case StartElement:
			if ev.Name == name {
				depth++
			}
		case EndElement:
			if ev.Name == name {
				depth--
				if depth == 0 {
					return nil
				}
			}
		}
	}
}
