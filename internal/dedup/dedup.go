// Package dedup selects the records of a fetched block that are newer than the sync cursor.
package dedup

import "github.com/Slithercze/everytrade-plugins/internal/domain"

// Selection is the result of applying a cursor to one block.
type Selection struct {
	New         []domain.RawTradeRecord
	NextCursor  string
	CursorFound bool // false when a non-empty cursor was not present in the block
}

// Select applies previousID to block. An empty previousID selects the whole block.
func Select(previousID string, block []domain.RawTradeRecord) Selection {
	s := Selection{
		New:         block,
		NextCursor:  NextCursor(previousID, block),
		CursorFound: previousID == "",
	}
	if previousID == "" {
		return s
	}
	for i, r := range block {
		if r.ID == previousID {
			s.New = block[i+1:]
			s.CursorFound = true
			return s
		}
	}
	// cursor fell outside the block: return everything and rely on idempotent storage
	return s
}

// SelectNew returns the records strictly after previousID, or the whole block
// when previousID is empty or not present.
func SelectNew(previousID string, block []domain.RawTradeRecord) []domain.RawTradeRecord {
	return Select(previousID, block).New
}

// NextCursor returns the id of the last record of the block, or previousID when the block is empty.
func NextCursor(previousID string, block []domain.RawTradeRecord) string {
	if len(block) == 0 {
		return previousID
	}
	return block[len(block)-1].ID
}
