package matching

import (
	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
	"github.com/google/btree"
)

// btreeDegree mirrors the degree the corpus uses for its B-tree order
// books (VictorVVedtion-perp-dex's x/orderbook/keeper) — large enough
// that a single pair's price levels fit in a handful of nodes.
const btreeDegree = 32

// level is one price level: the price plus the order ids resting at it,
// in intake order (price-time priority within the level).
type level struct {
	price    amount.Amount
	orderIds []clobtypes.OrderId
}

// Less implements btree.Item — levels order ascending by price.
func (l *level) Less(other btree.Item) bool {
	return l.price.LessThan(other.(*level).price)
}

// Side is one side (bids or asks) of a Book: an ordered map from price
// to the sequence of order ids resting there, per §3's "two ordered
// mappings ... Keys are sorted ascending".
type Side struct {
	tree   *btree.BTree
	levels map[string]*level
}

func newSide() *Side {
	return &Side{tree: btree.New(btreeDegree), levels: make(map[string]*level)}
}

func (s *Side) key(p amount.Amount) string { return p.String() }

// Add appends orderId to the end of the queue at price, creating the
// level if it doesn't exist yet.
func (s *Side) Add(orderId clobtypes.OrderId, price amount.Amount) {
	k := s.key(price)
	lv, ok := s.levels[k]
	if !ok {
		lv = &level{price: price}
		s.levels[k] = lv
		s.tree.ReplaceOrInsert(lv)
	}
	lv.orderIds = append(lv.orderIds, orderId)
}

// Remove deletes orderId from the level at price, dropping the level if
// it becomes empty. Reports whether the id was found.
func (s *Side) Remove(orderId clobtypes.OrderId, price amount.Amount) bool {
	k := s.key(price)
	lv, ok := s.levels[k]
	if !ok {
		return false
	}
	for i, id := range lv.orderIds {
		if id == orderId {
			lv.orderIds = append(lv.orderIds[:i], lv.orderIds[i+1:]...)
			if len(lv.orderIds) == 0 {
				delete(s.levels, k)
				s.tree.Delete(lv)
			}
			return true
		}
	}
	return false
}

// Empty reports whether the side has no resting orders.
func (s *Side) Empty() bool { return s.tree.Len() == 0 }

// BestAsk returns the lowest price with resting orders (min of tree).
func (s *Side) BestAsk() (amount.Amount, bool) {
	item := s.tree.Min()
	if item == nil {
		return amount.Zero, false
	}
	return item.(*level).price, true
}

// BestBid returns the highest price with resting orders (max of tree).
func (s *Side) BestBid() (amount.Amount, bool) {
	item := s.tree.Max()
	if item == nil {
		return amount.Zero, false
	}
	return item.(*level).price, true
}

// PriceLevelView is a read-only copy of one level, safe to hold across
// mutations of the Side it was snapshotted from.
type PriceLevelView struct {
	Price    amount.Amount
	OrderIds []clobtypes.OrderId
}

// SnapshotAscending returns every level ordered from lowest to highest
// price, used to walk the ask side when a Buy taker sweeps the book.
func (s *Side) SnapshotAscending() []PriceLevelView {
	var out []PriceLevelView
	s.tree.Ascend(func(it btree.Item) bool {
		lv := it.(*level)
		out = append(out, PriceLevelView{Price: lv.price, OrderIds: append([]clobtypes.OrderId(nil), lv.orderIds...)})
		return true
	})
	return out
}

// SnapshotDescending returns every level ordered from highest to lowest
// price, used to walk the bid side when a Sell taker sweeps the book.
func (s *Side) SnapshotDescending() []PriceLevelView {
	var out []PriceLevelView
	s.tree.Descend(func(it btree.Item) bool {
		lv := it.(*level)
		out = append(out, PriceLevelView{Price: lv.price, OrderIds: append([]clobtypes.OrderId(nil), lv.orderIds...)})
		return true
	})
	return out
}

// AllLevelsAscending returns every level, lowest price first, for both
// bids and asks snapshots used by diagnostics/tests.
func (s *Side) AllLevelsAscending() []PriceLevelView { return s.SnapshotAscending() }

// Book is a full order book: bid and ask sides sharing the Order arena
// kept separately in the orders map (§9, "graph shape").
type Book struct {
	Bids *Side
	Asks *Side
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{Bids: newSide(), Asks: newSide()}
}

// SideFor returns the Side an order with the given clobtypes.OrderSide
// rests on.
func (b *Book) SideFor(side clobtypes.OrderSide) *Side {
	if side == clobtypes.Buy {
		return b.Bids
	}
	return b.Asks
}

// OppositeSideFor returns the Side a taker with the given
// clobtypes.OrderSide matches against.
func (b *Book) OppositeSideFor(side clobtypes.OrderSide) *Side {
	if side == clobtypes.Buy {
		return b.Asks
	}
	return b.Bids
}
