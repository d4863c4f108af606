package file_service

import (
	"strings"

	"github.com/AnishMulay/blockfs/internal/disk"
)

// RenderBlockMap draws one character per block in rows of width: '.' free,
// 'D' data and 'I' index.
func RenderBlockMap(blocks []BlockInfo, width int) string {
	if width <= 0 {
		width = len(blocks)
	}
	var b strings.Builder
	for i, blk := range blocks {
		if i > 0 && i%width == 0 {
			b.WriteByte('\n')
		}
		switch {
		case !blk.Used:
			b.WriteByte('.')
		case blk.Type == disk.BlockTypeIndex:
			b.WriteByte('I')
		default:
			b.WriteByte('D')
		}
	}
	return b.String()
}
