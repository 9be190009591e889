// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/latsarcode/latsar/src/cache"
)

// Migration timeout - longer for batch operations
const migrationTimeout = 5 * time.Minute

// MigrateDatabase copies every cache container from the source database to
// the destination, e.g. when moving from SQLite to PostgreSQL.
func MigrateDatabase(sourceDriver, sourceSource, destDriver, destSource string) error {
	fmt.Println("Database Migration")
	fmt.Println("==================")
	fmt.Printf("Source: %s\n", sourceDriver)
	fmt.Printf("Destination: %s\n", destDriver)
	fmt.Println()

	sourceDB, err := NewPool(sourceDriver, sourceSource, 5, 2)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer sourceDB.Close()

	destDB, err := NewPool(destDriver, destSource, 5, 2)
	if err != nil {
		return fmt.Errorf("failed to open destination database: %w", err)
	}
	defer destDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), migrationTimeout)
	defer cancel()

	count, err := copyContainers(ctx, sourceDB, destDB)
	if err != nil {
		return err
	}

	fmt.Printf("Migration complete! Migrated %d cache entries.\n", count)
	fmt.Println()
	fmt.Println("IMPORTANT: Verify the migration before switching to the new database!")
	return nil
}

// copyContainers copies all containers and their entries and returns the
// number of entries written.
func copyContainers(ctx context.Context, src, dst DB) (int, error) {
	if err := dst.InitSchema(ctx); err != nil {
		return 0, fmt.Errorf("failed to initialize destination schema: %w", err)
	}

	names, err := src.Names(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read source containers: %w", err)
	}

	count := 0
	for _, name := range names {
		from, err := src.Open(ctx, name)
		if err != nil {
			return count, err
		}
		to, err := dst.Open(ctx, name)
		if err != nil {
			return count, err
		}

		keys, err := from.Keys(ctx)
		if err != nil {
			return count, fmt.Errorf("failed to list %s: %w", name, err)
		}

		entries := make(map[string]*cache.Response, len(keys))
		for _, key := range keys {
			resp, err := from.Match(ctx, key)
			if err != nil {
				return count, fmt.Errorf("failed to read %s %s: %w", name, key, err)
			}
			entries[key] = resp
		}

		if err := to.PutAll(ctx, entries); err != nil {
			return count, fmt.Errorf("failed to write %s: %w", name, err)
		}

		count += len(entries)
		fmt.Printf("Migrated %s (%d entries)\n", name, len(entries))
	}

	return count, nil
}
