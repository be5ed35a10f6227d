package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/restaurant-storefront/internal/model"
)

// OrderRepo persists placed orders and their status history.  Order ids
// are UUIDs generated here; the human-facing order number is derived from
// the id.  Items are kept in a JSON column.  All timestamps are UTC.
type OrderRepo struct {
    db  *sql.DB
    now func() time.Time
}

// NewOrderRepo returns an OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo {
    return &OrderRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the underlying sql.DB for callers that need their own
// transactions.
func (r *OrderRepo) DB() *sql.DB { return r.db }

const orderColumns = `id, order_number, customer_name, customer_email, customer_phone, delivery_address,
                      items, subtotal, delivery_fee, total_amount, status, payment_method,
                      COALESCE(notes, ''), estimated_delivery_at, created_at, updated_at`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanOrder(s rowScanner) (model.Order, error) {
    var (
        o     model.Order
        items []byte
        eta   sql.NullTime
    )
    err := s.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.DeliveryAddress,
        &items, &o.Subtotal, &o.DeliveryFee, &o.TotalAmount, &o.Status, &o.PaymentMethod,
        &o.Notes, &eta, &o.CreatedAt, &o.UpdatedAt)
    if err != nil {
        return o, err
    }
    if err := json.Unmarshal(items, &o.Items); err != nil {
        return o, fmt.Errorf("order %s items: %w", o.ID, err)
    }
    if eta.Valid {
        t := eta.Time
        o.EstimatedDeliveryAt = &t
    }
    return o, nil
}

func scanOrders(rows *sql.Rows) ([]model.Order, error) {
    defer rows.Close()
    out := []model.Order{}
    for rows.Next() {
        o, err := scanOrder(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, o)
    }
    return out, rows.Err()
}

// CreateOrder inserts a pending order together with its first history
// row.  Subtotal and total are computed from the items.
func (r *OrderRepo) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error) {
    if len(req.Items) == 0 {
        return model.Order{}, errors.New("order has no items")
    }
    now := r.now()
    id := uuid.NewString()
    o := model.Order{
        ID:              id,
        OrderNumber:     OrderNumber(id),
        CustomerName:    strings.TrimSpace(req.CustomerName),
        CustomerEmail:   strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
        CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
        DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
        Items:           req.Items,
        DeliveryFee:     req.DeliveryFee,
        Status:          model.OrderPending,
        PaymentMethod:   req.PaymentMethod,
        Notes:           req.Notes,
        CreatedAt:       now,
        UpdatedAt:       now,
    }
    for _, it := range req.Items {
        o.Subtotal += it.UnitPrice * float64(it.Quantity)
    }
    o.TotalAmount = o.Subtotal + o.DeliveryFee
    if req.EstimatedWindow > 0 {
        eta := now.Add(req.EstimatedWindow)
        o.EstimatedDeliveryAt = &eta
    }
    items, err := json.Marshal(o.Items)
    if err != nil {
        return model.Order{}, err
    }

    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return model.Order{}, err
    }
    defer tx.Rollback()

    const ins = `INSERT INTO orders (id, order_number, customer_name, customer_email, customer_phone, delivery_address,
                                     items, subtotal, delivery_fee, total_amount, status, payment_method, notes,
                                     estimated_delivery_at, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    var eta any
    if o.EstimatedDeliveryAt != nil {
        eta = *o.EstimatedDeliveryAt
    }
    if _, err := tx.ExecContext(ctx, ins, o.ID, o.OrderNumber, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
        o.DeliveryAddress, items, o.Subtotal, o.DeliveryFee, o.TotalAmount, o.Status, o.PaymentMethod, o.Notes,
        eta, o.CreatedAt, o.UpdatedAt); err != nil {
        return model.Order{}, err
    }
    if err := insertHistory(ctx, tx, o.ID, o.Status, "order placed", "customer", now); err != nil {
        return model.Order{}, err
    }
    if err := tx.Commit(); err != nil {
        return model.Order{}, err
    }
    return o, nil
}

// GetOrder fetches one order by id.
func (r *OrderRepo) GetOrder(ctx context.Context, id string) (model.Order, error) {
    o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return o, ErrNotFound
    }
    return o, err
}

// GetOrderForCustomer fetches an order only when it was placed with the
// given email or phone.  An order belonging to someone else yields
// ErrForbidden.
func (r *OrderRepo) GetOrderForCustomer(ctx context.Context, id, email, phone string) (model.Order, error) {
    o, err := r.GetOrder(ctx, id)
    if err != nil {
        return o, err
    }
    if !OwnedBy(o, email, phone) {
        return model.Order{}, ErrForbidden
    }
    return o, nil
}

// GetOrdersByCustomer returns every order placed with the given email or
// phone, newest first.
func (r *OrderRepo) GetOrdersByCustomer(ctx context.Context, email, phone string) ([]model.Order, error) {
    where, args, ok := customerFilter(email, phone)
    if !ok {
        return []model.Order{}, nil
    }
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+orderColumns+` FROM orders WHERE `+where+` ORDER BY created_at DESC`, args...)
    if err != nil {
        return nil, err
    }
    return scanOrders(rows)
}

// GetActiveOrdersByCustomer is GetOrdersByCustomer restricted to orders
// that are neither delivered nor cancelled.
func (r *OrderRepo) GetActiveOrdersByCustomer(ctx context.Context, email, phone string) ([]model.Order, error) {
    where, args, ok := customerFilter(email, phone)
    if !ok {
        return []model.Order{}, nil
    }
    args = append(args, model.OrderDelivered, model.OrderCancelled)
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+orderColumns+` FROM orders
         WHERE (`+where+`) AND status NOT IN (?, ?)
         ORDER BY created_at DESC`, args...)
    if err != nil {
        return nil, err
    }
    return scanOrders(rows)
}

// UpdateOrderStatus moves an order to status and records the change with
// notes and the acting user.  Orders already delivered or cancelled
// cannot change and yield ErrConflict.
func (r *OrderRepo) UpdateOrderStatus(ctx context.Context, id, status, notes, actor string) (model.Order, error) {
    if !model.ValidOrderStatus(status) {
        return model.Order{}, fmt.Errorf("unknown order status %q", status)
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return model.Order{}, err
    }
    defer tx.Rollback()

    o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ? FOR UPDATE`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Order{}, ErrNotFound
    }
    if err != nil {
        return model.Order{}, err
    }
    if model.IsTerminalOrderStatus(o.Status) {
        return model.Order{}, ErrConflict
    }

    now := r.now()
    if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`, status, now, id); err != nil {
        return model.Order{}, err
    }
    if err := insertHistory(ctx, tx, id, status, notes, actor, now); err != nil {
        return model.Order{}, err
    }
    if err := tx.Commit(); err != nil {
        return model.Order{}, err
    }
    o.Status = status
    o.UpdatedAt = now
    return o, nil
}

// GetStatusHistory lists the recorded status changes of an order, oldest
// first.
func (r *OrderRepo) GetStatusHistory(ctx context.Context, id string) ([]model.OrderStatusChange, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT order_id, status, COALESCE(notes, ''), COALESCE(actor, ''), created_at
         FROM order_status_history WHERE order_id = ? ORDER BY created_at, id`, id)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.OrderStatusChange{}
    for rows.Next() {
        var c model.OrderStatusChange
        if err := rows.Scan(&c.OrderID, &c.Status, &c.Notes, &c.Actor, &c.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    return out, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, orderID, status, notes, actor string, at time.Time) error {
    _, err := tx.ExecContext(ctx,
        `INSERT INTO order_status_history (order_id, status, notes, actor, created_at) VALUES (?, ?, ?, ?, ?)`,
        orderID, status, notes, actor, at)
    return err
}

// OrderNumber derives the short order number shown to customers.
func OrderNumber(id string) string {
    compact := strings.ReplaceAll(id, "-", "")
    if len(compact) > 8 {
        compact = compact[:8]
    }
    return "ORD-" + strings.ToUpper(compact)
}

// customerFilter builds the WHERE clause matching orders placed with email
// or phone.  Empty keys are left out so they never match the empty
// customer_email of orders placed without one; ok is false when both are
// empty.
func customerFilter(email, phone string) (where string, args []any, ok bool) {
    email = strings.ToLower(strings.TrimSpace(email))
    phone = strings.TrimSpace(phone)
    var conds []string
    if email != "" {
        conds = append(conds, "customer_email = ?")
        args = append(args, email)
    }
    if phone != "" {
        conds = append(conds, "customer_phone = ?")
        args = append(args, phone)
    }
    if len(conds) == 0 {
        return "", nil, false
    }
    return strings.Join(conds, " OR "), args, true
}

// OwnedBy reports whether o was placed with email or phone.  Empty keys
// never match.
func OwnedBy(o model.Order, email, phone string) bool {
    email = strings.ToLower(strings.TrimSpace(email))
    phone = strings.TrimSpace(phone)
    return (email != "" && strings.EqualFold(o.CustomerEmail, email)) ||
        (phone != "" && o.CustomerPhone == phone)
}
