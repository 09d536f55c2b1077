package batch

import "testing"

func TestChunk_EvenSplit(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	chunks := Chunk(items, 10)
	if len(chunks) != 10 {
		t.Fatalf("expected 10 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) != 10 {
			t.Errorf("chunk %d: expected 10 elements, got %d", i, len(c))
		}
	}
}

func TestChunk_ShortLastChunk(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	chunks := Chunk(items, 9)
	if len(chunks) != 12 {
		t.Fatalf("expected 12 chunks, got %d", len(chunks))
	}
	last := chunks[len(chunks)-1]
	if len(last) != 1 {
		t.Errorf("expected last chunk of 1 element, got %d", len(last))
	}
}

func TestChunk_PreservesOrder(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	chunks := Chunk(items, 2)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	flat := make([]string, 0, len(items))
	for _, c := range chunks {
		flat = append(flat, c...)
	}
	for i, v := range flat {
		if v != items[i] {
			t.Errorf("position %d: expected %q, got %q", i, items[i], v)
		}
	}
}

func TestChunk_Empty(t *testing.T) {
	if chunks := Chunk([]int{}, 10); chunks != nil {
		t.Errorf("expected nil for empty input, got %v", chunks)
	}
}

func TestChunk_SizeLargerThanInput(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3}, 10)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if len(chunks[0]) != 3 {
		t.Errorf("expected 3 elements, got %d", len(chunks[0]))
	}
}

func TestChunk_ZeroSize(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3}, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk for size 0, got %d", len(chunks))
	}
}
