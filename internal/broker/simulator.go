package broker

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradingcase/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// sizeScale is the number of decimal places kept on position sizes.
const sizeScale = 8

var sizeTick = decimal.New(1, -sizeScale)

// SimulatorBroker implements the Broker interface for backtesting. It holds
// a single long position, fills every order at the bar's close and keeps all
// balances in decimal so cash can never be overdrawn by rounding.
type SimulatorBroker struct {
	cfg  Config
	rate decimal.Decimal

	cash decimal.Decimal

	size            decimal.Decimal
	entryPrice      decimal.Decimal
	entryCommission decimal.Decimal
	position        domain.Position

	pending bool
	orders  []domain.Order
}

// NewSimulatorBroker creates a SimulatorBroker funded with cfg.InitialCash.
func NewSimulatorBroker(cfg Config) (*SimulatorBroker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Sizing == "" {
		cfg.Sizing = SizingAllIn
	}
	return &SimulatorBroker{
		cfg:  cfg,
		rate: decimal.NewFromFloat(cfg.CommissionRate),
		cash: decimal.NewFromFloat(cfg.InitialCash),
	}, nil
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// Submit creates and fills a market order at bar.Close. A rejected order is
// recorded with status rejected and returned together with the error.
func (b *SimulatorBroker) Submit(side domain.OrderSide, barIndex int, bar domain.Bar) (Fill, error) {
	order := domain.Order{
		Side:      side,
		BarIndex:  barIndex,
		Timestamp: bar.Timestamp,
		Price:     bar.Close,
		Status:    domain.OrderStatusNew,
	}
	if b.pending {
		return b.reject(order, ErrOrderPending)
	}
	if bar.Close <= 0 {
		return b.reject(order, fmt.Errorf("%w: non-positive fill price %v at bar %d",
			domain.ErrInsufficientData, bar.Close, barIndex))
	}

	b.pending = true
	var (
		fill Fill
		err  error
	)
	switch side {
	case domain.OrderSideBuy:
		fill, err = b.fillBuy(order)
	case domain.OrderSideSell:
		fill, err = b.fillSell(order)
	default:
		err = fmt.Errorf("%w: unknown order side %q", domain.ErrInvalidConfiguration, side)
	}
	if err != nil {
		return b.reject(order, err)
	}
	b.notify(fill.Order)
	return fill, nil
}

func (b *SimulatorBroker) fillBuy(order domain.Order) (Fill, error) {
	if b.size.IsPositive() {
		return Fill{}, ErrPositionOpen
	}
	price := decimal.NewFromFloat(order.Price)

	var size decimal.Decimal
	switch b.cfg.Sizing {
	case SizingFixed:
		size = decimal.NewFromFloat(b.cfg.Stake)
	default:
		unitCost := price.Mul(decimal.NewFromInt(1).Add(b.rate))
		size = b.cash.DivRound(unitCost, sizeScale+4).Truncate(sizeScale)
		if b.cost(price, size).GreaterThan(b.cash) {
			size = size.Sub(sizeTick)
		}
	}
	if !size.IsPositive() {
		return Fill{}, fmt.Errorf("%w: cash %s cannot buy any units at %s",
			domain.ErrInsufficientFunds, b.cash.StringFixed(2), price.String())
	}

	notional := price.Mul(size)
	commission := notional.Mul(b.rate)
	total := notional.Add(commission)
	if total.GreaterThan(b.cash) {
		return Fill{}, fmt.Errorf("%w: need %s, have %s",
			domain.ErrInsufficientFunds, total.StringFixed(2), b.cash.StringFixed(2))
	}

	b.cash = b.cash.Sub(total)
	b.size = size
	b.entryPrice = price
	b.entryCommission = commission
	b.position = domain.Position{
		Size:            size.InexactFloat64(),
		EntryPrice:      order.Price,
		EntryCommission: commission.InexactFloat64(),
		OpenedAt:        order.Timestamp,
		EntryBar:        order.BarIndex,
	}

	order.Size = b.position.Size
	order.Commission = b.position.EntryCommission
	order.Status = domain.OrderStatusFilled
	return Fill{Order: order}, nil
}

func (b *SimulatorBroker) fillSell(order domain.Order) (Fill, error) {
	if !b.size.IsPositive() {
		return Fill{}, ErrNoPosition
	}
	price := decimal.NewFromFloat(order.Price)

	proceeds := price.Mul(b.size)
	commission := proceeds.Mul(b.rate)
	gross := price.Sub(b.entryPrice).Mul(b.size)
	net := gross.Sub(b.entryCommission).Sub(commission)

	b.cash = b.cash.Add(proceeds).Sub(commission)

	trade := &domain.ClosedTrade{
		OpenedAt:        b.position.OpenedAt,
		ClosedAt:        order.Timestamp,
		EntryPrice:      b.position.EntryPrice,
		ExitPrice:       order.Price,
		Size:            b.position.Size,
		GrossPnL:        gross.InexactFloat64(),
		NetPnL:          net.InexactFloat64(),
		EntryCommission: b.position.EntryCommission,
		ExitCommission:  commission.InexactFloat64(),
	}

	order.Size = b.position.Size
	order.Commission = trade.ExitCommission
	order.Status = domain.OrderStatusFilled

	b.size = decimal.Zero
	b.entryPrice = decimal.Zero
	b.entryCommission = decimal.Zero
	b.position = domain.Position{}

	return Fill{Order: order, Trade: trade}, nil
}

// notify acknowledges a completed order and releases the pending gate.
func (b *SimulatorBroker) notify(order domain.Order) {
	b.orders = append(b.orders, order)
	b.pending = false
}

func (b *SimulatorBroker) reject(order domain.Order, err error) (Fill, error) {
	order.Status = domain.OrderStatusRejected
	b.notify(order)
	return Fill{Order: order}, fmt.Errorf("%s order at bar %d: %w", order.Side, order.BarIndex, err)
}

func (b *SimulatorBroker) cost(price, size decimal.Decimal) decimal.Decimal {
	notional := price.Mul(size)
	return notional.Add(notional.Mul(b.rate))
}

// Pending reports whether an order is awaiting acknowledgement.
func (b *SimulatorBroker) Pending() bool {
	return b.pending
}

// Position returns the open position, or the zero Position when flat.
func (b *SimulatorBroker) Position() domain.Position {
	return b.position
}

// Cash returns the available cash balance.
func (b *SimulatorBroker) Cash() float64 {
	return b.cash.InexactFloat64()
}

// Value returns cash plus the open position marked at price.
func (b *SimulatorBroker) Value(price float64) float64 {
	return b.cash.Add(b.size.Mul(decimal.NewFromFloat(price))).InexactFloat64()
}

// Orders returns every order submitted so far, filled or rejected.
func (b *SimulatorBroker) Orders() []domain.Order {
	out := make([]domain.Order, len(b.orders))
	copy(out, b.orders)
	return out
}
