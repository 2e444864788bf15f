package document

import (
	"strings"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// positionToOffset computes the byte offset for an LSP Position.
// LSP characters count UTF-16 code units, so codepoints above the BMP
// consume two units.
func positionToOffset(text string, pos protocol.Position) int {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		pos.Line = uint32(len(lines) - 1)
	}

	offset := 0
	for i := uint32(0); i < pos.Line; i++ {
		offset += len(lines[i]) + 1
	}

	var unitCount, byteCount int
	for _, r := range lines[pos.Line] {
		units := 1
		if r > 0xFFFF {
			units = 2
		}
		if uint32(unitCount+units) > pos.Character {
			break
		}
		unitCount += units
		byteCount += utf8.RuneLen(r)
	}

	return offset + byteCount
}
