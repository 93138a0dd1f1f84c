package db

import (
	"testing"
	"time"

	"github.com/2005czq/lunettes/domain"
	"github.com/google/uuid"
)

func TestStatsRepo_CountEntries(t *testing.T) {
	t.Run("should return 0 when no entries exist", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		got, err := repo.CountEntries()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if got != 0 {
			t.Fatalf("\nwanted:\n%d\ngot:\n%d", 0, got)
		}
	})

	t.Run("should count keys, not writes", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		repo.SetValue(domain.SettingsKey, "{}")
		repo.SetValue(domain.SettingsKey, "{}")
		repo.SetValue(domain.DefaultFontSources[domain.FontSans].CacheKey, "AAAA")

		got, err := repo.CountEntries()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if got != 2 {
			t.Fatalf("\nwanted:\n%d\ngot:\n%d", 2, got)
		}
	})
}

func TestStatsRepo_CountCachedFonts(t *testing.T) {
	t.Run("should only count non-empty font payloads", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		repo.SetValue(domain.SettingsKey, "{}")
		repo.SetValue(domain.DefaultFontSources[domain.FontSans].CacheKey, "AAAA")
		repo.SetValue(domain.DefaultFontSources[domain.FontSerif].CacheKey, "")

		got, err := repo.CountCachedFonts()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if got != 1 {
			t.Fatalf("\nwanted:\n%d\ngot:\n%d", 1, got)
		}
	})
}

func TestStatsRepo_CountLogs(t *testing.T) {
	t.Run("should return correct count when logs exist", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		for range 3 {
			id, err := uuid.NewV7()
			if err != nil {
				t.Fatalf("creating uuid: %v", err)
			}
			if err := repo.InsertLog(&domain.Log{ID: id, Timestamp: time.Now(), Level: "INFO", Message: "m"}); err != nil {
				t.Fatalf("inserting log: %v", err)
			}
		}

		got, err := repo.CountLogs()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if got != 3 {
			t.Fatalf("\nwanted:\n%d\ngot:\n%d", 3, got)
		}
	})
}
