package orderbook

import (
	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
	"github.com/google/btree"
)

// btreeDegree matches matching.Book's — this is the same ordered price
// level structure, generalized from C3's book to C5's projection.
const btreeDegree = 32

type level struct {
	price    amount.Amount
	orderIds []clobtypes.OrderId
}

func (l *level) Less(other btree.Item) bool {
	return l.price.LessThan(other.(*level).price)
}

// side is one side (bids or asks) of the reducer's book: an ordered map
// from price to the order ids resting there, mirroring
// matching.Side (§4.5, "ordered maps").
type side struct {
	tree   *btree.BTree
	levels map[string]*level
}

func newSide() *side {
	return &side{tree: btree.New(btreeDegree), levels: make(map[string]*level)}
}

func (s *side) key(p amount.Amount) string { return p.String() }

func (s *side) add(orderId clobtypes.OrderId, price amount.Amount) {
	k := s.key(price)
	lv, ok := s.levels[k]
	if !ok {
		lv = &level{price: price}
		s.levels[k] = lv
		s.tree.ReplaceOrInsert(lv)
	}
	lv.orderIds = append(lv.orderIds, orderId)
}

// remove deletes orderId from the level at price, dropping the level if
// it becomes empty (§4.5, "remove id from level (drop empty level)").
func (s *side) remove(orderId clobtypes.OrderId, price amount.Amount) {
	k := s.key(price)
	lv, ok := s.levels[k]
	if !ok {
		return
	}
	for i, id := range lv.orderIds {
		if id == orderId {
			lv.orderIds = append(lv.orderIds[:i], lv.orderIds[i+1:]...)
			if len(lv.orderIds) == 0 {
				delete(s.levels, k)
				s.tree.Delete(lv)
			}
			return
		}
	}
}

func (s *side) best() (amount.Amount, bool) {
	item := s.tree.Max()
	if item == nil {
		return amount.Zero, false
	}
	return item.(*level).price, true
}

func (s *side) worst() (amount.Amount, bool) {
	item := s.tree.Min()
	if item == nil {
		return amount.Zero, false
	}
	return item.(*level).price, true
}

func (s *side) ascending() []*level {
	var out []*level
	s.tree.Ascend(func(it btree.Item) bool {
		out = append(out, it.(*level))
		return true
	})
	return out
}

func (s *side) descending() []*level {
	var out []*level
	s.tree.Descend(func(it btree.Item) bool {
		out = append(out, it.(*level))
		return true
	})
	return out
}

// book holds both sides of the reducer's projection.
type book struct {
	bids *side
	asks *side
}

func newBook() *book {
	return &book{bids: newSide(), asks: newSide()}
}

func (b *book) sideFor(s clobtypes.OrderSide) *side {
	if s == clobtypes.Buy {
		return b.bids
	}
	return b.asks
}
