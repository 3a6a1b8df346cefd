package clobtypes

import "github.com/abdoElHodaky/clobchain/internal/amount"

// Trade is an immutable record of a single match between a buy and a
// sell order, priced at the maker's resting price.
type Trade struct {
	TradeId     TradeId
	Buyer       AccountId
	Seller      AccountId
	BuyOrderId  OrderId
	SellOrderId OrderId
	Price       amount.Amount
	Quantity    amount.Amount
}

// Value returns price * quantity, the quote amount transferred.
func (t *Trade) Value() amount.Amount {
	return t.Price.Mul(t.Quantity)
}
