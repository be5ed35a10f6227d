package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "strings"

    "github.com/iliyamo/restaurant-storefront/internal/model"
)

// MenuRepo reads the public menu: categories, menu items and deals.  All
// queries are read-only; the menu is maintained outside this service.
type MenuRepo struct {
    db *sql.DB
}

// NewMenuRepo returns a MenuRepo bound to the given database.
func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{db: db} }

// GetCategories returns every active category in display order.
func (r *MenuRepo) GetCategories(ctx context.Context) ([]model.Category, error) {
    const q = `SELECT id, name, slug, COALESCE(description, ''), COALESCE(image_url, ''), sort_order
               FROM categories WHERE is_active = 1 ORDER BY sort_order, name`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Category{}
    for rows.Next() {
        var c model.Category
        if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.SortOrder); err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    return out, rows.Err()
}

const menuItemColumns = `id, category_id, name, COALESCE(description, ''), price, COALESCE(image_url, ''), is_available`

func scanMenuItems(rows *sql.Rows) ([]model.MenuItem, error) {
    defer rows.Close()
    out := []model.MenuItem{}
    for rows.Next() {
        var m model.MenuItem
        if err := rows.Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &m.IsAvailable); err != nil {
            return nil, err
        }
        out = append(out, m)
    }
    return out, rows.Err()
}

// GetAllMenuItems returns every available menu item keyed by category id.
// Categories without items are absent from the map.
func (r *MenuRepo) GetAllMenuItems(ctx context.Context) (map[string][]model.MenuItem, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+menuItemColumns+` FROM menu_items WHERE is_available = 1 ORDER BY category_id, sort_order, name`)
    if err != nil {
        return nil, err
    }
    items, err := scanMenuItems(rows)
    if err != nil {
        return nil, err
    }
    byCategory := make(map[string][]model.MenuItem)
    for _, it := range items {
        byCategory[it.CategoryID] = append(byCategory[it.CategoryID], it)
    }
    return byCategory, nil
}

// GetDeals returns the currently active deals.  The items column holds a
// JSON array of item names.
func (r *MenuRepo) GetDeals(ctx context.Context) ([]model.Deal, error) {
    const q = `SELECT id, title, COALESCE(description, ''), price, COALESCE(original_price, 0),
                      COALESCE(image_url, ''), COALESCE(items, '[]'), is_active
               FROM deals
               WHERE is_active = 1 AND (valid_until IS NULL OR valid_until > UTC_TIMESTAMP())
               ORDER BY sort_order, title`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Deal{}
    for rows.Next() {
        var (
            d     model.Deal
            items []byte
        )
        if err := rows.Scan(&d.ID, &d.Title, &d.Description, &d.Price, &d.OriginalPrice, &d.ImageURL, &items, &d.IsActive); err != nil {
            return nil, err
        }
        if err := json.Unmarshal(items, &d.Items); err != nil {
            d.Items = nil
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

// SearchMenuItems matches available items whose name or description
// contains term, case-insensitively.  An empty term returns nothing.
func (r *MenuRepo) SearchMenuItems(ctx context.Context, term string, limit int) ([]model.MenuItem, error) {
    term = strings.ToLower(strings.TrimSpace(term))
    if term == "" {
        return []model.MenuItem{}, nil
    }
    if limit <= 0 || limit > 100 {
        limit = 20
    }
    like := "%" + term + "%"
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+menuItemColumns+` FROM menu_items
         WHERE is_available = 1 AND (LOWER(name) LIKE ? OR LOWER(description) LIKE ?)
         ORDER BY name LIMIT ?`, like, like, limit)
    if err != nil {
        return nil, err
    }
    return scanMenuItems(rows)
}
