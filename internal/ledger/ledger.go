// Package ledger holds the company balance, the warehouse and the operation
// history, and applies balance, purchase and sale operations to them.
//
// Every operation that changes state or records an attempt writes the full
// snapshot back through the store. Save failures are logged and the
// in-memory effect stands.
package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockledger/internal/domain"
	"stockledger/internal/store"
)

// Observer is told about every operation outcome. Metrics hang off it.
type Observer interface {
	Observe(operation string, ok bool, balance decimal.Decimal, stockLevel int64)
}

type Settings struct {
	InitialBalance decimal.Decimal
	Currency       string
	Observer       Observer
}

type Ledger struct {
	mu sync.Mutex

	store    store.Store
	logger   *zap.Logger
	observer Observer
	currency string

	balance   decimal.Decimal
	warehouse map[string]domain.Product
	history   []string
}

// Open loads the ledger from st. Unreadable parts fall back to defaults with a warning.
func Open(ctx context.Context, st store.Store, logger *zap.Logger, settings Settings) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := domain.Snapshot{
		Balance:   settings.InitialBalance,
		Warehouse: map[string]domain.Product{},
	}
	snap, err := st.Load(ctx, defaults)
	if err != nil {
		logger.Warn("ledger data partially unreadable, defaults used", zap.Error(err))
	}
	if snap.Warehouse == nil {
		snap.Warehouse = map[string]domain.Product{}
	}
	logger.Info("ledger loaded",
		zap.String("balance", snap.Balance.String()),
		zap.Int("products", len(snap.Warehouse)),
		zap.Int("history", len(snap.History)),
	)

	currency := settings.Currency
	if currency == "" {
		currency = "PLN"
	}
	return &Ledger{
		store:     st,
		logger:    logger,
		observer:  settings.Observer,
		currency:  currency,
		balance:   snap.Balance,
		warehouse: snap.Warehouse,
		history:   snap.History,
	}
}

func (l *Ledger) AdjustBalance(ctx context.Context, direction domain.Direction, amount decimal.Decimal) domain.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := l.adjustBalance(ctx, direction, amount)
	l.observe("balance_"+string(direction), res.OK)
	return res
}

func (l *Ledger) adjustBalance(ctx context.Context, direction domain.Direction, amount decimal.Decimal) domain.Result {
	if amount.IsNegative() {
		return domain.Fail("The amount cannot be negative.")
	}

	switch direction {
	case domain.DirectionAdd:
		l.balance = l.balance.Add(amount)
		l.record(ctx, fmt.Sprintf("Added %s to the account. Balance: %s", l.money(amount), l.money(l.balance)))
		return domain.Ok(fmt.Sprintf("Balance topped up. Current balance: %s.", l.money(l.balance)))

	case domain.DirectionSubtract:
		if amount.GreaterThan(l.balance) {
			l.record(ctx, fmt.Sprintf("Withdrawal of %s refused, insufficient funds. Balance: %s", l.money(amount), l.money(l.balance)))
			return domain.Fail(fmt.Sprintf("Insufficient funds. Available: %s, requested: %s.", l.money(l.balance), l.money(amount)))
		}
		l.balance = l.balance.Sub(amount)
		l.record(ctx, fmt.Sprintf("Withdrew %s from the account. Balance: %s", l.money(amount), l.money(l.balance)))
		return domain.Ok(fmt.Sprintf("Funds withdrawn. Current balance: %s.", l.money(l.balance)))

	default:
		return domain.Fail("Invalid operation, use 'add' or 'sub'.")
	}
}

// Purchase buys quantity units of a product at price each. A repeat purchase
// only raises the quantity; the price recorded on the first purchase is kept.
func (l *Ledger) Purchase(ctx context.Context, name string, quantity int64, price decimal.Decimal) domain.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := l.purchase(ctx, NormalizeName(name), quantity, price)
	l.observe("purchase", res.OK)
	return res
}

func (l *Ledger) purchase(ctx context.Context, name string, quantity int64, price decimal.Decimal) domain.Result {
	if name == "" {
		return domain.Fail("The product name is required.")
	}
	if quantity <= 0 {
		return domain.Fail("The quantity must be greater than zero.")
	}
	if !price.IsPositive() {
		return domain.Fail("The price must be greater than zero.")
	}

	p, ok := l.warehouse[name]
	if ok && quantity > math.MaxInt64-p.Quantity {
		return domain.Fail(fmt.Sprintf("Cannot hold more than %d units of %s. In stock: %d.", int64(math.MaxInt64), name, p.Quantity))
	}

	total := price.Mul(decimal.NewFromInt(quantity))
	if l.balance.LessThan(total) {
		l.record(ctx, fmt.Sprintf("Attempted to buy %d units (%s) for %s, insufficient funds. Balance: %s",
			quantity, name, l.money(total), l.money(l.balance)))
		return domain.Fail(fmt.Sprintf("Insufficient funds to purchase. Required: %s, available: %s.",
			l.money(total), l.money(l.balance)))
	}

	if !ok {
		p = domain.Product{Price: price}
	}
	p.Quantity += quantity
	l.warehouse[name] = p
	l.balance = l.balance.Sub(total)

	l.record(ctx, fmt.Sprintf("Purchase: %d units (%s) for %s. Balance: %s. In stock: %d units.",
		quantity, name, l.money(total), l.money(l.balance), p.Quantity))
	return domain.Ok(fmt.Sprintf("Purchased %d units of %s. Cost: %s. Current balance: %s.",
		quantity, name, l.money(total), l.money(l.balance)))
}

func (l *Ledger) Sell(ctx context.Context, name string, quantity int64) domain.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := l.sell(ctx, NormalizeName(name), quantity)
	l.observe("sale", res.OK)
	return res
}

func (l *Ledger) sell(ctx context.Context, name string, quantity int64) domain.Result {
	p, ok := l.warehouse[name]
	if !ok {
		return domain.Fail(fmt.Sprintf("Product '%s' not found in stock.", name))
	}
	if quantity <= 0 {
		return domain.Fail("The quantity to sell must be greater than zero.")
	}
	if quantity > p.Quantity {
		l.record(ctx, fmt.Sprintf("Attempted to sell %d units (%s) but only %d in stock.", quantity, name, p.Quantity))
		return domain.Fail(fmt.Sprintf("Insufficient stock. Available: %d, requested: %d.", p.Quantity, quantity))
	}

	revenue := p.Price.Mul(decimal.NewFromInt(quantity))
	p.Quantity -= quantity
	l.warehouse[name] = p
	l.balance = l.balance.Add(revenue)

	l.record(ctx, fmt.Sprintf("Sale: %d units (%s) for %s. Balance: %s. In stock: %d units.",
		quantity, name, l.money(revenue), l.money(l.balance), p.Quantity))
	return domain.Ok(fmt.Sprintf("Sold %d units of %s. Revenue: %s. Current balance: %s.",
		quantity, name, l.money(revenue), l.money(l.balance)))
}

// CheckBalance reports the balance and records that it was looked at.
func (l *Ledger) CheckBalance(ctx context.Context) domain.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.record(ctx, fmt.Sprintf("Checked balance: %s", l.money(l.balance)))
	l.observe("account", true)
	return domain.Ok(fmt.Sprintf("Current balance: %s.", l.money(l.balance)))
}

// InspectProduct reports price, quantity and stock value of one product.
func (l *Ledger) InspectProduct(ctx context.Context, name string) domain.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	name = NormalizeName(name)
	p, ok := l.warehouse[name]
	if !ok {
		l.observe("list", false)
		return domain.Fail(fmt.Sprintf("Product '%s' not found in stock.", name))
	}
	l.record(ctx, fmt.Sprintf("Checked quantity of (%s) in stock: %d", name, p.Quantity))
	l.observe("list", true)
	value := p.Price.Mul(decimal.NewFromInt(p.Quantity))
	return domain.Ok(fmt.Sprintf("In stock: %d units. Unit price: %s. Stock value: %s.",
		p.Quantity, l.money(p.Price), l.money(value)))
}

// ProductAvailability reports whether a product is in stock.
func (l *Ledger) ProductAvailability(ctx context.Context, name string) domain.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	name = NormalizeName(name)
	p, ok := l.warehouse[name]
	if !ok {
		l.observe("warehouse", false)
		return domain.Fail(fmt.Sprintf("Product '%s' not found in stock.", name))
	}
	l.record(ctx, fmt.Sprintf("Viewed availability of (%s): %d in stock", name, p.Quantity))
	l.observe("warehouse", true)
	if p.Quantity > 0 {
		return domain.Ok(fmt.Sprintf("%s is in stock (%d units).", name, p.Quantity))
	}
	return domain.Ok(fmt.Sprintf("%s is out of stock.", name))
}

func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// StockTotal is the sum of quantities over all products, capped at math.MaxInt64.
func (l *Ledger) StockTotal() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stockTotal()
}

func (l *Ledger) stockTotal() int64 {
	var total int64
	for _, p := range l.warehouse {
		if p.Quantity > math.MaxInt64-total {
			return math.MaxInt64
		}
		total += p.Quantity
	}
	return total
}

// Items returns a copy of the warehouse.
func (l *Ledger) Items() map[string]domain.Product {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]domain.Product, len(l.warehouse))
	for name, p := range l.warehouse {
		out[name] = p
	}
	return out
}

func (l *Ledger) Product(name string) (domain.Product, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.warehouse[NormalizeName(name)]
	return p, ok
}

func (l *Ledger) HistoryLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.history)
}

func (l *Ledger) Currency() string { return l.currency }

// record appends one history line and persists the whole snapshot.
func (l *Ledger) record(ctx context.Context, line string) {
	l.history = append(l.history, line)
	l.persist(ctx)
}

func (l *Ledger) persist(ctx context.Context) {
	snap := domain.Snapshot{
		Balance:   l.balance,
		Warehouse: l.warehouse,
		History:   l.history,
	}
	if err := l.store.Save(ctx, snap.Clone()); err != nil {
		l.logger.Error("persist ledger failed, in-memory state kept", zap.Error(err))
	}
}

func (l *Ledger) observe(operation string, ok bool) {
	if l.observer == nil {
		return
	}
	l.observer.Observe(operation, ok, l.balance, l.stockTotal())
}

func (l *Ledger) money(d decimal.Decimal) string {
	return d.String() + " " + l.currency
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// NormalizeName is the warehouse key for a user-supplied product name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(lineBreaks.Replace(name)))
}
