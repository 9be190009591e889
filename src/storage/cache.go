// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/latsarcode/latsar/src/cache"
)

// Open returns the named container, creating it if absent.
func (db DB) Open(ctx context.Context, name string) (cache.Container, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	id := rowID(name)

	var existing string
	err := db.pool.QueryRowContext(ctx, db.rebind(`SELECT id FROM cache_containers WHERE id = $1`), id).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = db.pool.ExecContext(ctx,
			db.rebind(`INSERT INTO cache_containers (id, name, create_time) VALUES ($1, $2, $3)`),
			id, name, time.Now().Unix(),
		)
		// Lost a race with another Open of the same name
		if err != nil {
			if scanErr := db.pool.QueryRowContext(ctx, db.rebind(`SELECT id FROM cache_containers WHERE id = $1`), id).Scan(&existing); scanErr != nil {
				return nil, fmt.Errorf("db: create container %s: %w", name, err)
			}
		}
	} else if err != nil {
		return nil, fmt.Errorf("db: open container %s: %w", name, err)
	}

	return &container{db: db, id: id, name: name}, nil
}

func (db DB) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultBatchTimeout)
	defer cancel()

	tx, err := db.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := rowID(name)
	if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM cache_entries WHERE container_id = $1`), id); err != nil {
		return fmt.Errorf("db: delete entries of %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM cache_containers WHERE id = $1`), id); err != nil {
		return fmt.Errorf("db: delete container %s: %w", name, err)
	}

	return tx.Commit()
}

func (db DB) Names(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	rows, err := db.pool.QueryContext(ctx, `SELECT name FROM cache_containers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}

type container struct {
	db   DB
	id   string
	name string
}

func (c *container) Match(ctx context.Context, key string) (*cache.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var (
		resp     cache.Response
		header   []byte
		body     []byte
		encoding string
		size     int64
	)
	err := c.db.pool.QueryRowContext(ctx,
		c.db.rebind(`SELECT url, status, header, body, body_encoding, body_size FROM cache_entries WHERE id = $1`),
		rowID(c.name, key),
	).Scan(&resp.URL, &resp.Status, &header, &body, &encoding, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	resp.Header, err = decodeHeader(header)
	if err != nil {
		return nil, fmt.Errorf("db: entry %s: %w", key, err)
	}
	resp.Body, err = decodeBody(body, encoding, size)
	if err != nil {
		return nil, fmt.Errorf("db: entry %s: %w", key, err)
	}

	return &resp, nil
}

// PutAll replaces the given keys in a single transaction.
func (c *container) PutAll(ctx context.Context, entries map[string]*cache.Response) error {
	ctx, cancel := context.WithTimeout(ctx, defaultBatchTimeout)
	defer cancel()

	tx, err := c.db.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for key, resp := range entries {
		header, err := encodeHeader(resp.Header)
		if err != nil {
			return fmt.Errorf("db: entry %s: %w", key, err)
		}
		body, encoding := encodeBody(resp.Body)

		id := rowID(c.name, key)
		if _, err := tx.ExecContext(ctx, c.db.rebind(`DELETE FROM cache_entries WHERE id = $1`), id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			c.db.rebind(`INSERT INTO cache_entries (id, container_id, req_key, url, status, header, body, body_encoding, body_size, create_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`),
			id, c.id, key, resp.URL, resp.Status, header, body, encoding, int64(len(resp.Body)), now,
		)
		if err != nil {
			return fmt.Errorf("db: store entry %s: %w", key, err)
		}
	}

	return tx.Commit()
}

func (c *container) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	rows, err := c.db.pool.QueryContext(ctx, c.db.rebind(`SELECT req_key FROM cache_entries WHERE container_id = $1`), c.id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(keys)
	return keys, nil
}
