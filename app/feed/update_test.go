package feed

import (
	"fmt"
	"testing"

	"github.com/mmcdole/gofeed"
)

func makeItems(n int, prefix string) []*gofeed.Item {
	items := make([]*gofeed.Item, n)
	for i := 0; i < n; i++ {
		items[i] = &gofeed.Item{
			GUID:  fmt.Sprintf("%s-guid-%d", prefix, i),
			Title: fmt.Sprintf("%s title %d", prefix, i),
			Link:  fmt.Sprintf("https://example.com/%s/%d", prefix, i),
		}
	}
	return items
}

func TestEntryHashStable(t *testing.T) {
	item := &gofeed.Item{GUID: "guid", Title: "title", Link: "link"}

	h1 := EntryHash(item)
	h2 := EntryHash(item)

	if h1 != h2 {
		t.Errorf("Expected identical hashes, got %s and %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(h1))
	}
}

func TestEntryHashDistinguishesFields(t *testing.T) {
	a := &gofeed.Item{GUID: "guid", Title: "title", Link: "link"}
	b := &gofeed.Item{GUID: "guid", Title: "other", Link: "link"}

	if EntryHash(a) == EntryHash(b) {
		t.Error("Expected different hashes for different titles")
	}
}

func TestCalculateUpdateFirstObservation(t *testing.T) {
	items := makeItems(3, "a")

	hashes, updated := CalculateUpdate(nil, items)

	if len(hashes) != 3 {
		t.Errorf("Expected 3 hashes, got %d", len(hashes))
	}
	if len(updated) != 3 {
		t.Errorf("Expected 3 updated entries, got %d", len(updated))
	}
}

func TestCalculateUpdateNoChange(t *testing.T) {
	items := makeItems(3, "a")
	hashes, _ := CalculateUpdate(nil, items)

	newHashes, updated := CalculateUpdate(hashes, items)

	if len(updated) != 0 {
		t.Errorf("Expected no updated entries, got %d", len(updated))
	}
	if len(newHashes) != 3 {
		t.Errorf("Expected 3 hashes, got %d", len(newHashes))
	}
}

func TestCalculateUpdateNewEntriesFirst(t *testing.T) {
	old := makeItems(3, "a")
	oldHashes, _ := CalculateUpdate(nil, old)

	// Two new entries prepended, one old entry rolled off the feed.
	current := append(makeItems(2, "b"), old[:2]...)

	newHashes, updated := CalculateUpdate(oldHashes, current)

	if len(updated) != 2 {
		t.Fatalf("Expected 2 updated entries, got %d", len(updated))
	}
	if updated[0].GUID != "b-guid-0" || updated[1].GUID != "b-guid-1" {
		t.Errorf("Expected updated entries in feed order, got %s, %s", updated[0].GUID, updated[1].GUID)
	}

	// Current entries first, then the surviving old fingerprint.
	if len(newHashes) != 5 {
		t.Fatalf("Expected 5 hashes, got %d", len(newHashes))
	}
	if newHashes[0] != EntryHash(current[0]) {
		t.Error("Expected current entries to lead the merged sequence")
	}
	if newHashes[4] != EntryHash(old[2]) {
		t.Error("Expected the rolled-off entry's fingerprint to survive at the tail")
	}
}

func TestCalculateUpdateDeduplicatesWithinFeed(t *testing.T) {
	items := makeItems(2, "a")
	items = append(items, items[0]) // same entry twice

	hashes, updated := CalculateUpdate(nil, items)

	if len(hashes) != 2 {
		t.Errorf("Expected 2 hashes after dedup, got %d", len(hashes))
	}
	if len(updated) != 2 {
		t.Errorf("Expected 2 updated entries after dedup, got %d", len(updated))
	}
}

func TestRetainHashesBound(t *testing.T) {
	hashes := make([]string, 250)
	for i := range hashes {
		hashes[i] = fmt.Sprintf("h%d", i)
	}

	// Small feeds keep the 100 floor.
	kept := RetainHashes(hashes, 10)
	if len(kept) != 100 {
		t.Errorf("Expected 100 hashes, got %d", len(kept))
	}

	// Large feeds keep twice the entry count.
	kept = RetainHashes(hashes, 80)
	if len(kept) != 160 {
		t.Errorf("Expected 160 hashes, got %d", len(kept))
	}

	if got := RetainHashes(nil, 10); got != nil {
		t.Errorf("Expected nil for empty input, got %v", got)
	}
}
