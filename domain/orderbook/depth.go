package orderbook

// LevelView is an aggregated price level.
type LevelView struct {
	Price  uint64 `json:"price" msgpack:"price"`
	Qty    uint64 `json:"qty" msgpack:"qty"`
	Orders int    `json:"orders" msgpack:"orders"`
}

type Depth struct {
	CompanyID uint64      `json:"company_id" msgpack:"company_id"`
	Bids      []LevelView `json:"bids" msgpack:"bids"`
	Asks      []LevelView `json:"asks" msgpack:"asks"`
}

// Depth aggregates up to n levels per side, best first. n <= 0 means all.
func (b *OrderBook) Depth(n int) Depth {
	d := Depth{CompanyID: b.CompanyID}
	collect := func(out *[]LevelView) func(*PriceLevel) bool {
		return func(lvl *PriceLevel) bool {
			*out = append(*out, LevelView{Price: lvl.Price, Qty: lvl.TotalQty, Orders: lvl.OrderCount})
			return n <= 0 || len(*out) < n
		}
	}
	b.BidsWalk(collect(&d.Bids))
	b.AsksWalk(collect(&d.Asks))
	return d
}
