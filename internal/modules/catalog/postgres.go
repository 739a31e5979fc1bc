package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates the Postgres-backed catalog repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

// ConstraintViolation returns the violated constraint name when err is a
// Postgres unique_violation. The sync layer branches on the name to decide
// between self-healing and slug-suffixed retry.
func ConstraintViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ── Categories ────────────────────────────────────────────────────────────────

const categoryColumns = `id, square_id, name, slug, ordinal, created_at, updated_at`

func scanCategory(scan func(...interface{}) error) (*Category, error) {
	c := &Category{}
	var squareID sql.NullString
	err := scan(&c.ID, &squareID, &c.Name, &c.Slug, &c.Ordinal, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if squareID.Valid {
		c.SquareID = &squareID.String
	}
	return c, nil
}

func (r *postgresRepo) CategoryBySquareID(ctx context.Context, squareID string) (*Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE square_id=$1`, squareID)
	return scanCategory(row.Scan)
}

func (r *postgresRepo) CategoryByName(ctx context.Context, name string) (*Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE LOWER(name)=LOWER(TRIM($1))`, name)
	return scanCategory(row.Scan)
}

func (r *postgresRepo) CategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE slug=$1`, slug)
	return scanCategory(row.Scan)
}

func (r *postgresRepo) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY ordinal, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		c, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *postgresRepo) CreateCategory(ctx context.Context, c *Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, square_id, name, slug, ordinal)
		VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.SquareID, c.Name, c.Slug, c.Ordinal)
	return err
}

func (r *postgresRepo) SetCategorySquareID(ctx context.Context, id uuid.UUID, squareID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET square_id=$1, updated_at=NOW() WHERE id=$2`, squareID, id)
	return err
}

// ── Products ──────────────────────────────────────────────────────────────────

const productColumns = `id, square_id, name, slug, description, base_price, images, ordinal,
	category_id, active, calories, dietary_preferences, ingredients, allergens, nutrition,
	created_at, updated_at`

func scanProduct(scan func(...interface{}) error) (*Product, error) {
	p := &Product{}
	var calories sql.NullInt64
	var nutrition []byte
	err := scan(&p.ID, &p.SquareID, &p.Name, &p.Slug, &p.Description, &p.BasePrice,
		pq.Array(&p.Images), &p.Ordinal, &p.CategoryID, &p.Active, &calories,
		pq.Array(&p.DietaryPreferences), &p.Ingredients, pq.Array(&p.Allergens),
		&nutrition, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if calories.Valid {
		v := int(calories.Int64)
		p.Calories = &v
	}
	p.Nutrition = nutrition
	return p, nil
}

func (r *postgresRepo) ProductBySquareID(ctx context.Context, squareID string) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE square_id=$1`, squareID).Scan)
	if err != nil {
		return nil, err
	}
	p.Variants, err = r.listVariants(ctx, p.ID)
	return p, err
}

func (r *postgresRepo) ProductByVariationID(ctx context.Context, variationID string) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE id = (SELECT product_id FROM product_variants WHERE square_variation_id=$1)`,
		variationID).Scan)
	if err != nil {
		return nil, err
	}
	p.Variants, err = r.listVariants(ctx, p.ID)
	return p, err
}

func (r *postgresRepo) ProductBySlug(ctx context.Context, slug string) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE slug=$1`, slug).Scan)
	if err != nil {
		return nil, err
	}
	p.Variants, err = r.listVariants(ctx, p.ID)
	return p, err
}

func (r *postgresRepo) ListProducts(ctx context.Context, activeOnly bool) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE active=true`
	}
	query += ` ORDER BY ordinal, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CreateProduct inserts the product and its variants in a single transaction.
func (r *postgresRepo) CreateProduct(ctx context.Context, p *Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products
		  (id, square_id, name, slug, description, base_price, images, ordinal,
		   category_id, active, calories, dietary_preferences, ingredients, allergens, nutrition)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.SquareID, p.Name, p.Slug, p.Description, p.BasePrice,
		pq.Array(p.Images), p.Ordinal, p.CategoryID, p.Active, nullableInt(p.Calories),
		pq.Array(p.DietaryPreferences), p.Ingredients, pq.Array(p.Allergens),
		nullableJSON(p.Nutrition))
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	if err := insertVariants(ctx, tx, p.ID, p.Variants); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateProduct rewrites every product field and replaces the variant set
// wholesale (delete-all, recreate) so a concurrent reader never sees a
// half-updated variant list.
func (r *postgresRepo) UpdateProduct(ctx context.Context, p *Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET name=$1, slug=$2, description=$3, base_price=$4, images=$5, ordinal=$6,
		    category_id=$7, active=$8, calories=$9, dietary_preferences=$10,
		    ingredients=$11, allergens=$12, nutrition=$13, updated_at=NOW()
		WHERE id=$14`,
		p.Name, p.Slug, p.Description, p.BasePrice, pq.Array(p.Images), p.Ordinal,
		p.CategoryID, p.Active, nullableInt(p.Calories), pq.Array(p.DietaryPreferences),
		p.Ingredients, pq.Array(p.Allergens), nullableJSON(p.Nutrition), p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id=$1`, p.ID)
	if err != nil {
		return fmt.Errorf("delete variants: %w", err)
	}
	if err := insertVariants(ctx, tx, p.ID, p.Variants); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) ArchiveStale(ctx context.Context, validSquareIDs []string, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET active=false, updated_at=NOW()
		WHERE active=true AND NOT (square_id = ANY($1)) AND created_at < $2`,
		pq.Array(validSquareIDs), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ── helpers ───────────────────────────────────────────────────────────────────

func insertVariants(ctx context.Context, tx *sql.Tx, productID uuid.UUID, variants []*Variant) error {
	for _, v := range variants {
		var price decimal.NullDecimal
		if v.Price != nil {
			price = decimal.NullDecimal{Decimal: *v.Price, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO product_variants (id, product_id, square_variation_id, name, price, ordinal)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			v.ID, productID, v.SquareVariationID, v.Name, price, v.Ordinal)
		if err != nil {
			return fmt.Errorf("insert variant %s: %w", v.SquareVariationID, err)
		}
	}
	return nil
}

func (r *postgresRepo) listVariants(ctx context.Context, productID uuid.UUID) ([]*Variant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, square_variation_id, name, price, ordinal, created_at, updated_at
		FROM product_variants WHERE product_id=$1 ORDER BY ordinal`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []*Variant
	for rows.Next() {
		v := &Variant{}
		var price decimal.NullDecimal
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SquareVariationID, &v.Name,
			&price, &v.Ordinal, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		if price.Valid {
			v.Price = &price.Decimal
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
