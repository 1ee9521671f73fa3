package sqlstore

// MaxRowsPerStatement bounds multi-row statements and IN lists so they stay
// under the bind parameter limits of both SQLite and PostgreSQL.
const MaxRowsPerStatement = 500

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxRowsPerStatement
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		chunks = append(chunks, items[start:min(start+size, len(items))])
	}
	return chunks
}
