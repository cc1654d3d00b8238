package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"nammakumta/directory/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

//go:embed schema.sql
var schema string

// DirectoryRepository is the local mirror of the backend's directory. Every
// list is returned in backend order.
type DirectoryRepository interface {
	SaveCategories(ctx context.Context, categories []*domain.Category) error
	SaveSubcategories(ctx context.Context, subcategories []*domain.Subcategory) error
	SaveAdvertisements(ctx context.Context, ads []*domain.Advertisement) error
	SaveShops(ctx context.Context, offset int, shops []*domain.Shop) error

	ListCategories(ctx context.Context) ([]*domain.Category, error)
	ListSubcategories(ctx context.Context, categoryID string) ([]*domain.Subcategory, error)
	GetSubcategory(ctx context.Context, id string) (*domain.Subcategory, error)
	ListShops(ctx context.Context) ([]*domain.Shop, error)
	ListShopsByCategory(ctx context.Context, categoryID string) ([]*domain.Shop, error)
	ListShopsBySubcategory(ctx context.Context, subcategoryID string) ([]*domain.Shop, error)
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	ListAdvertisements(ctx context.Context) ([]*domain.Advertisement, error)
	GetAdvertisement(ctx context.Context, id string) (*domain.Advertisement, error)
}

type directoryRepository struct {
	db *pgxpool.Pool
}

func NewDirectoryRepository(db *pgxpool.Pool) DirectoryRepository {
	return &directoryRepository{
		db: db,
	}
}

// EnsureSchema creates the mirror tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (r *directoryRepository) SaveCategories(ctx context.Context, categories []*domain.Category) error {
	return r.replaceAll(ctx, "categories", len(categories), func(b *pgx.Batch, i int) error {
		c := categories[i]
		if c.ItemID() == "" {
			return nil
		}
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		b.Queue(`INSERT INTO categories (id, position, data) VALUES ($1, $2, $3)`, c.ID, i, data)
		return nil
	})
}

func (r *directoryRepository) SaveSubcategories(ctx context.Context, subcategories []*domain.Subcategory) error {
	return r.replaceAll(ctx, "subcategories", len(subcategories), func(b *pgx.Batch, i int) error {
		s := subcategories[i]
		if s.ItemID() == "" {
			return nil
		}
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		b.Queue(`INSERT INTO subcategories (id, position, category_id, data) VALUES ($1, $2, $3, $4)`,
			s.ID, i, s.CategoryID.Key(), data)
		return nil
	})
}

func (r *directoryRepository) SaveAdvertisements(ctx context.Context, ads []*domain.Advertisement) error {
	return r.replaceAll(ctx, "advertisements", len(ads), func(b *pgx.Batch, i int) error {
		a := ads[i]
		if a.ItemID() == "" {
			return nil
		}
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		b.Queue(`INSERT INTO advertisements (id, position, category_id, data) VALUES ($1, $2, $3, $4)`,
			a.ID, i, a.CategoryID.Key(), data)
		return nil
	})
}

// SaveShops upserts one page of shops. offset is the position of the first
// shop in the full backend listing.
func (r *directoryRepository) SaveShops(ctx context.Context, offset int, shops []*domain.Shop) error {
	query := `
	INSERT INTO shops (id, position, category_id, subcategory_id, data, synced_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (id)
	DO UPDATE SET position = $2, category_id = $3, subcategory_id = $4, data = $5, synced_at = now()`

	batch := &pgx.Batch{}
	for i, s := range shops {
		if s.ItemID() == "" {
			continue
		}
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode shop %s: %w", s.ID, err)
		}
		batch.Queue(query, s.ID, offset+i, s.CategoryID.Key(), s.SubcategoryID.Key(), data)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save shops: %w", err)
	}
	return nil
}

func (r *directoryRepository) replaceAll(ctx context.Context, table string, n int, queue func(*pgx.Batch, int) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin %s replace: %w", table, err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	// table is one of our own constants, never user input
	batch.Queue("DELETE FROM " + table)
	for i := 0; i < n; i++ {
		if err := queue(batch, i); err != nil {
			return fmt.Errorf("failed to encode %s row %d: %w", table, i, err)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to replace %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s replace: %w", table, err)
	}
	return nil
}

func (r *directoryRepository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return list[domain.Category](ctx, r.db, `SELECT data FROM categories ORDER BY position`)
}

func (r *directoryRepository) ListSubcategories(ctx context.Context, categoryID string) ([]*domain.Subcategory, error) {
	if categoryID == "" {
		return list[domain.Subcategory](ctx, r.db, `SELECT data FROM subcategories ORDER BY position`)
	}
	return list[domain.Subcategory](ctx, r.db,
		`SELECT data FROM subcategories WHERE category_id = $1 ORDER BY position`, categoryID)
}

func (r *directoryRepository) GetSubcategory(ctx context.Context, id string) (*domain.Subcategory, error) {
	return get[domain.Subcategory](ctx, r.db, `SELECT data FROM subcategories WHERE id = $1`, id)
}

func (r *directoryRepository) ListShops(ctx context.Context) ([]*domain.Shop, error) {
	return list[domain.Shop](ctx, r.db, `SELECT data FROM shops ORDER BY position, id`)
}

func (r *directoryRepository) ListShopsByCategory(ctx context.Context, categoryID string) ([]*domain.Shop, error) {
	return list[domain.Shop](ctx, r.db,
		`SELECT data FROM shops WHERE category_id = $1 ORDER BY position, id`, categoryID)
}

func (r *directoryRepository) ListShopsBySubcategory(ctx context.Context, subcategoryID string) ([]*domain.Shop, error) {
	return list[domain.Shop](ctx, r.db,
		`SELECT data FROM shops WHERE subcategory_id = $1 ORDER BY position, id`, subcategoryID)
}

func (r *directoryRepository) GetShop(ctx context.Context, id string) (*domain.Shop, error) {
	return get[domain.Shop](ctx, r.db, `SELECT data FROM shops WHERE id = $1`, id)
}

func (r *directoryRepository) ListAdvertisements(ctx context.Context) ([]*domain.Advertisement, error) {
	return list[domain.Advertisement](ctx, r.db, `SELECT data FROM advertisements ORDER BY position`)
}

func (r *directoryRepository) GetAdvertisement(ctx context.Context, id string) (*domain.Advertisement, error) {
	return get[domain.Advertisement](ctx, r.db, `SELECT data FROM advertisements WHERE id = $1`, id)
}

func list[T any](ctx context.Context, db *pgxpool.Pool, query string, args ...any) ([]*T, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	out := make([]*T, 0, len(raw))
	for _, data := range raw {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}
		out = append(out, &v)
	}
	return out, nil
}

func get[T any](ctx context.Context, db *pgxpool.Pool, query string, args ...any) (*T, error) {
	var data []byte
	if err := db.QueryRow(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return &v, nil
}
