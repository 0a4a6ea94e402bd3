package tmx

// A GID packs a tile index and its orientation into 32 bits: the three most
// significant bits are flip flags, the remaining 29 bits are the tile id.
const (
	flipHorizontalFlag uint32 = 0x80000000
	flipVerticalFlag   uint32 = 0x40000000
	flipDiagonalFlag   uint32 = 0x20000000
	tileIDMask         uint32 = 0x1FFFFFFF
)

// DecodeGID splits a raw GID into its tile id and flip flags. A raw value
// whose masked tile id is 0 means "no tile" and always decodes with all
// flags false, even if stray flip bits are set.
func DecodeGID(raw uint32) (tileID uint32, flipH, flipV, flipD bool) {
	tileID = raw & tileIDMask
	if tileID == 0 {
		return 0, false, false, false
	}
	return tileID,
		raw&flipHorizontalFlag != 0,
		raw&flipVerticalFlag != 0,
		raw&flipDiagonalFlag != 0
}

// EncodeGID is the exact inverse of DecodeGID.
func EncodeGID(tileID uint32, flipH, flipV, flipD bool) uint32 {
	raw := tileID & tileIDMask
	if flipH {
		raw |= flipHorizontalFlag
	}
	if flipV {
		raw |= flipVerticalFlag
	}
	if flipD {
		raw |= flipDiagonalFlag
	}
	return raw
}
