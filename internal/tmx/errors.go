package tmx

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes parse failures. Every failure is terminal for the
// current parse; nothing is retried or papered over with defaults.
type ErrorKind string

const (
	// ErrMalformedXML indicates structurally invalid markup (unterminated
	// tags, mismatched close tags, bad character encoding).
	ErrMalformedXML ErrorKind = "malformed_xml"
	// ErrMalformedDocument indicates well-formed XML that violates TMX
	// structure: a missing required attribute, an unparsable number, or a
	// tile grid that doesn't match its declared size.
	ErrMalformedDocument ErrorKind = "malformed_document"
	// ErrMalformedGeometry indicates orientation-specific attributes that
	// are missing or inconsistent with the declared map dimensions.
	ErrMalformedGeometry ErrorKind = "malformed_geometry"
	// ErrUnsupportedEncoding indicates tile data in any encoding other
	// than CSV (base64, zlib, gzip, zstd, or embedded tile elements).
	ErrUnsupportedEncoding ErrorKind = "unsupported_encoding"
	// ErrUnresolvedTileset indicates a tile id outside every declared
	// tileset's GID range.
	ErrUnresolvedTileset ErrorKind = "unresolved_tileset"
	// ErrUnknownPropertyType indicates a property with an unrecognized
	// type attribute.
	ErrUnknownPropertyType ErrorKind = "unknown_property_type"
)

// Error is the typed failure returned by the walker, parser and GID
// resolution. Element, Attr and Value carry enough context to diagnose the
// failure without re-parsing the document.
type Error struct {
	Kind    ErrorKind
	Element string
	Attr    string
	Value   string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Element != "" {
		s += " in <" + e.Element + ">"
	}
	if e.Attr != "" {
		s += " attribute " + e.Attr
	}
	if e.Value != "" {
		s += "=" + e.Value
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is, or wraps, a tmx error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

func malformedXML(err error) *Error {
	return &Error{Kind: ErrMalformedXML, Err: err}
}

func malformedDocf(element, attr, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    ErrMalformedDocument,
		Element: element,
		Attr:    attr,
		Msg:     fmt.Sprintf(format, args...),
	}
}

func malformedGeometryf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrMalformedGeometry, Msg: fmt.Sprintf(format, args...)}
}

func unsupportedEncoding(name string) *Error {
	return &Error{Kind: ErrUnsupportedEncoding, Element: "data", Attr: "encoding", Value: name}
}

func unresolvedTileset(tileID uint32) *Error {
	return &Error{
		Kind: ErrUnresolvedTileset,
		Msg:  fmt.Sprintf("tile id %d is outside every declared tileset range", tileID),
	}
}

func unknownPropertyType(name string) *Error {
	return &Error{Kind: ErrUnknownPropertyType, Element: "property", Attr: "type", Value: name}
}
