package i18n

import (
	"testing"
)

func TestLoad(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Expected translations to load, got %v", err)
	}
	if catalog == nil {
		t.Fatal("Expected a catalog")
	}
}

func TestGetExactLanguage(t *testing.T) {
	catalog, _ := Load()

	en := catalog.Get("en", "feed_deactivated_warn")
	ru := catalog.Get("ru", "feed_deactivated_warn")

	if en == "" || ru == "" {
		t.Fatal("Expected messages for en and ru")
	}
	if en == ru {
		t.Error("Expected different translations per language")
	}
}

func TestGetRegionalVariantMatches(t *testing.T) {
	catalog, _ := Load()

	base := catalog.Get("zh", "feed_deactivated_warn")
	if got := catalog.Get("zh-TW", "feed_deactivated_warn"); got != base {
		t.Errorf("Expected zh-TW to resolve to zh, got %q", got)
	}
	if got := catalog.Get("en-GB", "feed_deactivated_warn"); got != catalog.Get("en", "feed_deactivated_warn") {
		t.Errorf("Expected en-GB to resolve to en, got %q", got)
	}
}

func TestGetFallsBackToEnglish(t *testing.T) {
	catalog, _ := Load()

	en := catalog.Get("en", "feed_deactivated_warn")

	if got := catalog.Get("", "feed_deactivated_warn"); got != en {
		t.Errorf("Expected fallback for empty language, got %q", got)
	}
	if got := catalog.Get("xx-not-a-tag!", "feed_deactivated_warn"); got != en {
		t.Errorf("Expected fallback for an invalid tag, got %q", got)
	}
}

func TestGetUnknownKey(t *testing.T) {
	catalog, _ := Load()

	if got := catalog.Get("en", "no_such_key"); got != "" {
		t.Errorf("Expected empty string for an unknown key, got %q", got)
	}
}
