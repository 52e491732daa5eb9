package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// EntryHash fingerprints an entry for dedup. GUID alone would suffice for
// well-behaved feeds, but many reuse or omit it.
func EntryHash(item *gofeed.Item) string {
	content := fmt.Sprintf("%s|%s|%s", item.GUID, item.Title, item.Link)
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// CalculateUpdate diffs the current entries against previously seen
// fingerprints. It returns the merged fingerprint sequence (current entries
// first, in feed order, then surviving old fingerprints) and the entries not
// seen before, in feed order (newest first).
func CalculateUpdate(prevHashes []string, entries []*gofeed.Item) ([]string, []*gofeed.Item) {
	prevSet := make(map[string]struct{}, len(prevHashes))
	for _, h := range prevHashes {
		prevSet[h] = struct{}{}
	}

	currentSet := make(map[string]struct{}, len(entries))
	newHashes := make([]string, 0, len(entries)+len(prevHashes))
	var updated []*gofeed.Item

	for _, entry := range entries {
		h := EntryHash(entry)
		if _, dup := currentSet[h]; dup {
			continue
		}
		currentSet[h] = struct{}{}
		newHashes = append(newHashes, h)
		if _, seen := prevSet[h]; !seen {
			updated = append(updated, entry)
		}
	}

	for _, h := range prevHashes {
		if _, ok := currentSet[h]; !ok {
			newHashes = append(newHashes, h)
		}
	}

	return newHashes, updated
}

// RetainHashes truncates the fingerprint sequence to the retention bound of
// max(2*entryCount, 100). Returns nil when nothing remains.
func RetainHashes(hashes []string, entryCount int) []string {
	limit := entryCount * 2
	if limit < 100 {
		limit = 100
	}
	if len(hashes) > limit {
		hashes = hashes[:limit]
	}
	if len(hashes) == 0 {
		return nil
	}
	return hashes
}
