package tmx

import (
	"io"
	"strconv"
	"strings"
)

// Parse reads a complete TMX document and returns its intermediate model.
// The walk is depth-first and single-pass; on any structural violation the
// whole parse fails with a typed error and no partial document is returned.
// GID-to-tileset resolution is deferred to materialization since tilesets
// may appear before or interleaved with layers in source order.
func Parse(input string) (*MapDoc, error) {
	p := &parser{w: NewWalker(input)}

	for {
		ev, err := p.w.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, malformedDocf("map", "", "document contains no <map> element")
		}
		if ev.Kind != StartElement {
			continue
		}
		if ev.Name != "map" {
			return nil, malformedDocf(ev.Name, "", "expected <map> as the root element")
		}
		doc, err := p.parseMap(ev)
		if err != nil {
			return nil, err
		}
		if err := validateGeometry(doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
}

type parser struct {
	w *Walker
}

func (p *parser) parseMap(start *Event) (*MapDoc, error) {
	doc := &MapDoc{RenderOrder: "right-down"}

	orientation, err := requireAttr(start, "orientation")
	if err != nil {
		return nil, err
	}
	if doc.Orientation, err = parseOrientation(orientation); err != nil {
		return nil, err
	}
	if doc.Width, err = intAttr(start, "width", true, 0); err != nil {
		return nil, err
	}
	if doc.Height, err = intAttr(start, "height", true, 0); err != nil {
		return nil, err
	}
	if doc.TileWidth, err = intAttr(start, "tilewidth", true, 0); err != nil {
		return nil, err
	}
	if doc.TileHeight, err = intAttr(start, "tileheight", true, 0); err != nil {
		return nil, err
	}
	if v, ok := start.Attr("renderorder"); ok {
		doc.RenderOrder = v
	}
	doc.BackgroundColor, _ = start.Attr("backgroundcolor")
	if v, ok := start.Attr("infinite"); ok {
		doc.Infinite = v == "1"
	}
	doc.StaggerAxis, _ = start.Attr("staggeraxis")
	doc.StaggerIndex, _ = start.Attr("staggerindex")
	if doc.HexSideLength, err = intAttr(start, "hexsidelength", false, 0); err != nil {
		return nil, err
	}

	for {
		ev, err := p.w.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, malformedXML(io.ErrUnexpectedEOF)
		}
		switch {
		case ev.Kind == EndElement && ev.Name == "map":
			return doc, nil
		case ev.Kind != StartElement:
			continue
		}

		switch ev.Name {
		case "tileset":
			ts, err := p.parseTileset(ev)
			if err != nil {
				return nil, err
			}
			doc.Tilesets = append(doc.Tilesets, *ts)
		case "layer":
			layer, err := p.parseTileLayer(ev, doc)
			if err != nil {
				return nil, err
			}
			doc.Layers = append(doc.Layers, *layer)
		case "objectgroup":
			layer, err := p.parseObjectGroup(ev)
			if err != nil {
				return nil, err
			}
			doc.Layers = append(doc.Layers, *layer)
		case "properties":
			props, err := p.parseProperties()
			if err != nil {
				return nil, err
			}
			doc.Properties = props
		default:
			if err := p.w.skip(ev.Name); err != nil {
				return nil, err
			}
		}
	}
}

func (p *parser) parseTileset(start *Event) (*TilesetRef, error) {
	ts := &TilesetRef{}

	firstGID, err := uintAttr(start, "firstgid", true, 0)
	if err != nil {
		return nil, err
	}
	if firstGID < 1 {
		return nil, malformedDocf("tileset", "firstgid", "firstgid must be at least 1, got %d", firstGID)
	}
	ts.FirstGID = firstGID

	if _, ok := start.Attr("source"); ok {
		return nil, malformedDocf("tileset", "source", "external tileset files are not supported")
	}

	ts.Name, _ = start.Attr("name")
	if ts.TileWidth, err = intAttr(start, "tilewidth", true, 0); err != nil {
		return nil, err
	}
	if ts.TileHeight, err = intAttr(start, "tileheight", true, 0); err != nil {
		return nil, err
	}
	if ts.TileCount, err = intAttr(start, "tilecount", false, 0); err != nil {
		return nil, err
	}
	if ts.Columns, err = intAttr(start, "columns", false, 0); err != nil {
		return nil, err
	}

	for {
		ev, err := p.w.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, malformedXML(io.ErrUnexpectedEOF)
		}
		switch {
		case ev.Kind == EndElement && ev.Name == "tileset":
			return ts, nil
		case ev.Kind != StartElement:
			continue
		}

		switch ev.Name {
		case "image":
			ts.ImageSource, _ = ev.Attr("source")
			if ts.ImageWidth, err = intAttr(ev, "width", false, 0); err != nil {
				return nil, err
			}
			if ts.ImageHeight, err = intAttr(ev, "height", false, 0); err != nil {
				return nil, err
			}
			if err := p.w.skip("image"); err != nil {
				return nil, err
			}
		case "properties":
			props, err := p.parseProperties()
			if err != nil {
				return nil, err
			}
			ts.Properties = props
		default:
			// Per-tile metadata, wangsets and animations are out of
			// scope for the stored model.
			if err := p.w.skip(ev.Name); err != nil {
				return nil, err
			}
		}
	}
}

func (p *parser) parseTileLayer(start *Event, doc *MapDoc) (*LayerDoc, error) {
	layer := &LayerDoc{Kind: TileLayer, Visible: true, Opacity: 1.0}
	var err error

	layer.Name, _ = start.Attr("name")
	if v, ok := start.Attr("visible"); ok {
		layer.Visible = v != "0"
	}
	if layer.Opacity, err = floatAttr(start, "opacity", 1.0); err != nil {
		return nil, err
	}
	if layer.OffsetX, err = floatAttr(start, "offsetx", 0); err != nil {
		return nil, err
	}
	if layer.OffsetY, err = floatAttr(start, "offsety", 0); err != nil {
		return nil, err
	}
	// Layer dimensions default to the map's; Tiled writes them explicitly.
	if layer.Width, err = intAttr(start, "width", false, doc.Width); err != nil {
		return nil, err
	}
	if layer.Height, err = intAttr(start, "height", false, doc.Height); err != nil {
		return nil, err
	}

	for {
		ev, err := p.w.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, malformedXML(io.ErrUnexpectedEOF)
		}
		switch {
		case ev.Kind == EndElement && ev.Name == "layer":
			return layer, nil
		case ev.Kind != StartElement:
			continue
		}

		switch ev.Name {
		case "data":
			if err := p.parseLayerData(ev, layer, doc); err != nil {
				return nil, err
			}
		case "properties":
			props, err := p.parseProperties()
			if err != nil {
				return nil, err
			}
			layer.Properties = props
		default:
			if err := p.w.skip(ev.Name); err != nil {
				return nil, err
			}
		}
	}
}

// parseLayerData decodes a <data> element. Only CSV is supported: any other
// encoding attribute fails with the requested encoding named, and embedded
// <tile> children (Tiled's XML encoding, written when the attribute is
// absent) fail the same way rather than silently dropping tiles.
func (p *parser) parseLayerData(start *Event, layer *LayerDoc, doc *MapDoc) error {
	encoding, ok := start.Attr("encoding")
	if !ok {
		encoding = "xml"
	}
	if encoding != "csv" {
		return unsupportedEncoding(encoding)
	}
	if compression, ok := start.Attr("compression"); ok && compression != "" {
		return unsupportedEncoding(encoding + "+" + compression)
	}

	for {
		ev, err := p.w.Next()
		if err != nil {
			return err
		}
		if ev == nil {
			return malformedXML(io.ErrUnexpectedEOF)
		}
		switch ev.Kind {
		case EndElement:
			if ev.Name == "data" {
				return nil
			}
		case Text:
			if doc.Infinite {
				return malformedDocf("data", "", "infinite maps must store tile data in <chunk> elements")
			}
			cells, err := decodeCSV(ev.Text, layer.Width, layer.Height, 0, 0)
			if err != nil {
				return err
			}
			layer.Cells = append(layer.Cells, cells...)
		case StartElement:
			if ev.Name != "chunk" {
				return unsupportedEncoding("xml")
			}
			if err := p.parseChunk(ev, layer); err != nil {
				return err
			}
		}
	}
}

func (p *parser) parseChunk(start *Event, layer *LayerDoc) error {
	origin := ChunkOrigin{}
	var width, height int
	var err error

	if origin.X, err = intAttr(start, "x", true, 0); err != nil {
		return err
	}
	if origin.Y, err = intAttr(start, "y", true, 0); err != nil {
		return err
	}
	if width, err = intAttr(start, "width", true, 0); err != nil {
		return err
	}
	if height, err = intAttr(start, "height", true, 0); err != nil {
		return err
	}

	chunk := &Chunk{Origin: origin, Width: width, Height: height}
	for {
		ev, err := p.w.Next()
		if err != nil {
			return err
		}
		if ev == nil {
			return malformedXML(io.ErrUnexpectedEOF)
		}
		switch ev.Kind {
		case EndElement:
			if ev.Name == "chunk" {
				if layer.Chunks == nil {
					layer.Chunks = make(map[ChunkOrigin]*Chunk)
				}
				layer.Chunks[origin] = chunk
				return nil
			}
		case Text:
			cells, err := decodeCSV(ev.Text, width, height, origin.X, origin.Y)
			if err != nil {
				return err
			}
			chunk.Cells = append(chunk.Cells, cells...)
		case StartElement:
			return unsupportedEncoding("xml")
		}
	}
}

// decodeCSV parses a comma-separated GID grid of exactly width*height
// tokens, placing token i at (i%width + offsetX, i/width + offsetY). A token
// count other than width*height is a hard error, never a truncation. Cells
// with tile id 0 are empty and not returned.
func decodeCSV(text string, width, height, offsetX, offsetY int) ([]TileCell, error) {
	if width <= 0 {
		return nil, malformedDocf("data", "", "cannot decode tile data for zero-width grid")
	}
	tokens := strings.Split(text, ",")
	if len(tokens) != width*height {
		return nil, malformedDocf("data", "",
			"expected %d tiles for a %dx%d grid, got %d", width*height, width, height, len(tokens))
	}

	var cells []TileCell
	for i, tok := range tokens {
		raw64, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 32)
		if err != nil {
			return nil, malformedDocf("data", "", "invalid GID %q at index %d", strings.TrimSpace(tok), i)
		}
		tileID, flipH, flipV, flipD := DecodeGID(uint32(raw64))
		if tileID == 0 {
			continue
		}
		cells = append(cells, TileCell{
			X:     i%width + offsetX,
			Y:     i/width + offsetY,
			GID:   tileID,
			FlipH: flipH,
			FlipV: flipV,
			FlipD: flipD,
		})
	}
	return cells, nil
}

func (p *parser) parseObjectGroup(start *Event) (*LayerDoc, error) {
	layer := &LayerDoc{Kind: ObjectLayer, Visible: true, Opacity: 1.0}
	var err error

	layer.Name, _ = start.Attr("name")
	if v, ok := start.Attr("visible"); ok {
		layer.Visible = v != "0"
	}
	if layer.Opacity, err = floatAttr(start, "opacity", 1.0); err != nil {
		return nil, err
	}
	if layer.OffsetX, err = floatAttr(start, "offsetx", 0); err != nil {
		return nil, err
	}
	if layer.OffsetY, err = floatAttr(start, "offsety", 0); err != nil {
		return nil, err
	}

	for {
		ev, err := p.w.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, malformedXML(io.ErrUnexpectedEOF)
		}
		switch {
		case ev.Kind == EndElement && ev.Name == "objectgroup":
			return layer, nil
		case ev.Kind != StartElement:
			continue
		}

		switch ev.Name {
		case "object":
			obj, err := p.parseObject(ev)
			if err != nil {
				return nil, err
			}
			layer.Objects = append(layer.Objects, *obj)
		case "properties":
			props, err := p.parseProperties()
			if err != nil {
				return nil, err
			}
			layer.Properties = props
		default:
			if err := p.w.skip(ev.Name); err != nil {
				return nil, err
			}
		}
	}
}

func (p *parser) parseObject(start *Event) (*ObjectDoc, error) {
	obj := &ObjectDoc{Shape: ShapeRectangle, Visible: true}
	var err error

	if obj.ID, err = intAttr(start, "id", false, 0); err != nil {
		return nil, err
	}
	obj.Name, _ = start.Attr("name")
	obj.Type, _ = start.Attr("type")
	if obj.X, err = floatAttr(start, "x", 0); err != nil {
		return nil, err
	}
	if obj.Y, err = floatAttr(start, "y", 0); err != nil {
		return nil, err
	}
	if obj.Width, err = floatAttr(start, "width", 0); err != nil {
		return nil, err
	}
	if obj.Height, err = floatAttr(start, "height", 0); err != nil {
		return nil, err
	}
	if obj.Rotation, err = floatAttr(start, "rotation", 0); err != nil {
		return nil, err
	}
	if v, ok := start.Attr("visible"); ok {
		obj.Visible = v != "0"
	}

	for {
		ev, err := p.w.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, malformedXML(io.ErrUnexpectedEOF)
		}
		switch {
		case ev.Kind == EndElement && ev.Name == "object":
			return obj, nil
		case ev.Kind != StartElement:
			continue
		}

		switch ev.Name {
		case "ellipse":
			obj.Shape = ShapeEllipse
			if err := p.w.skip("ellipse"); err != nil {
				return nil, err
			}
		case "point":
			obj.Shape = ShapePoint
			if err := p.w.skip("point"); err != nil {
				return nil, err
			}
		case "polygon", "polyline":
			// Vertex lists are not decoded; the object survives with its
			// positional fields and an unknown shape.
			obj.Shape = ShapeUnknown
			if err := p.w.skip(ev.Name); err != nil {
				return nil, err
			}
		case "properties":
			props, err := p.parseProperties()
			if err != nil {
				return nil, err
			}
			obj.Properties = props
		default:
			if err := p.w.skip(ev.Name); err != nil {
				return nil, err
			}
		}
	}
}

func (p *parser) parseProperties() ([]PropertyDoc, error) {
	var props []PropertyDoc
	for {
		ev, err := p.w.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, malformedXML(io.ErrUnexpectedEOF)
		}
		switch {
		case ev.Kind == EndElement && ev.Name == "properties":
			return props, nil
		case ev.Kind != StartElement:
			continue
		}
		if ev.Name != "property" {
			if err := p.w.skip(ev.Name); err != nil {
				return nil, err
			}
			continue
		}

		prop, err := p.parseProperty(ev)
		if err != nil {
			return nil, err
		}
		props = append(props, *prop)
	}
}

func (p *parser) parseProperty(start *Event) (*PropertyDoc, error) {
	name, err := requireAttr(start, "name")
	if err != nil {
		return nil, err
	}

	typeName, ok := start.Attr("type")
	if !ok {
		typeName = string(PropertyString)
	}
	propType := PropertyType(typeName)
	switch propType {
	case PropertyString, PropertyInt, PropertyFloat, PropertyBool, PropertyColor, PropertyFile:
	default:
		return nil, unknownPropertyType(typeName)
	}

	value, hasValue := start.Attr("value")
	for {
		ev, err := p.w.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, malformedXML(io.ErrUnexpectedEOF)
		}
		switch ev.Kind {
		case EndElement:
			if ev.Name == "property" {
				if err := validatePropertyValue(name, propType, value); err != nil {
					return nil, err
				}
				return &PropertyDoc{Name: name, Type: propType, Value: value}, nil
			}
		case Text:
			// Multiline string values are stored as element text.
			if !hasValue {
				value = ev.Text
			}
		case StartElement:
			if err := p.w.skip(ev.Name); err != nil {
				return nil, err
			}
		}
	}
}

// validatePropertyValue rejects values that don't parse as their declared
// type, so a bad map fails at load rather than at first query.
func validatePropertyValue(name string, propType PropertyType, value string) error {
	switch propType {
	case PropertyInt:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return malformedDocf("property", "value", "property %q is not a valid int: %q", name, value)
		}
	case PropertyFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return malformedDocf("property", "value", "property %q is not a valid float: %q", name, value)
		}
	case PropertyBool:
		if value != "true" && value != "false" {
			return malformedDocf("property", "value", "property %q is not a valid bool: %q", name, value)
		}
	}
	return nil
}

// Attribute helpers. Required attributes that are absent, and any attribute
// that fails to parse, abort the walk.

func requireAttr(ev *Event, name string) (string, error) {
	v, ok := ev.Attr(name)
	if !ok {
		return "", malformedDocf(ev.Name, name, "required attribute is missing")
	}
	return v, nil
}

func intAttr(ev *Event, name string, required bool, fallback int) (int, error) {
	v, ok := ev.Attr(name)
	if !ok {
		if required {
			return 0, malformedDocf(ev.Name, name, "required attribute is missing")
		}
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &Error{Kind: ErrMalformedDocument, Element: ev.Name, Attr: name, Value: v, Msg: "not an integer"}
	}
	return n, nil
}

func uintAttr(ev *Event, name string, required bool, fallback uint32) (uint32, error) {
	v, ok := ev.Attr(name)
	if !ok {
		if required {
			return 0, malformedDocf(ev.Name, name, "required attribute is missing")
		}
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, &Error{Kind: ErrMalformedDocument, Element: ev.Name, Attr: name, Value: v, Msg: "not an unsigned integer"}
	}
	return uint32(n), nil
}

func floatAttr(ev *Event, name string, fallback float64) (float64, error) {
	v, ok := ev.Attr(name)
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &Error{Kind: ErrMalformedDocument, Element: ev.Name, Attr: name, Value: v, Msg: "not a number"}
	}
	return f, nil
}
