package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/chris/hbrowse/pkg/models"
)

// benchmarkSizes are the history lengths the load benchmarks run against
var benchmarkSizes = []int{1000, 10000}

// seedBenchmarkDB fills a fresh database with n entries spread over two mapsets
func seedBenchmarkDB(b *testing.B, n int) string {
	b.Helper()
	dbPath := filepath.Join(b.TempDir(), "bench.db")

	database, err := NewForTesting(dbPath)
	if err != nil {
		b.Fatalf("failed to create database: %v", err)
	}
	defer database.Close()

	for i := 0; i < n; i++ {
		mapset := "PERMANENT"
		if i%4 == 0 {
			mapset = "user1"
		}
		e := &models.Entry{
			Timestamp: 1704470400 + int64(i*60),
			Mapset:    mapset,
			Command:   fmt.Sprintf("r.info map=elevation_%d", i),
			Status:    models.StatusSuccess,
		}
		if _, err := database.InsertEntry(e); err != nil {
			b.Fatalf("failed to insert entry: %v", err)
		}
	}
	return dbPath
}

// BenchmarkLoadEntries measures a full mapset rebuild for each driver
func BenchmarkLoadEntries(b *testing.B) {
	for _, n := range benchmarkSizes {
		dbPath := seedBenchmarkDB(b, n)

		b.Run(fmt.Sprintf("modernc/%d", n), func(b *testing.B) {
			database, err := New(dbPath)
			if err != nil {
				b.Fatalf("failed to open database: %v", err)
			}
			defer database.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := database.LoadEntries(context.Background(), "PERMANENT"); err != nil {
					b.Fatalf("failed to load entries: %v", err)
				}
			}
		})

		b.Run(fmt.Sprintf("zombiezen/%d", n), func(b *testing.B) {
			database, err := NewZ(dbPath)
			if err != nil {
				b.Fatalf("failed to open database: %v", err)
			}
			defer database.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := database.LoadEntries(context.Background(), "PERMANENT"); err != nil {
					b.Fatalf("failed to load entries: %v", err)
				}
			}
		})
	}
}
