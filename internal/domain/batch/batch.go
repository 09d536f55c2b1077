// Package batch provides chunk splitting for staged bulk loads.
package batch

// Chunk partitions items into ceil(len(items)/size) chunks of at most size
// elements each, preserving order. The last chunk may be shorter. A size of
// zero or less returns the whole input as a single chunk.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
