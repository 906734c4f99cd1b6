package client

import (
	"github.com/yanun0323/logs"

	"venuetrader/internal/og"
	"venuetrader/internal/state"
)

// bootFlatten flattens the positions left over from a previous run. It
// waits for the first positions snapshot and for a price on each product.
type bootFlatten struct {
	canceled bool
	done     bool
	sent     map[state.PositionKey]bool
}

func (b *bootFlatten) step(c *Client) {
	if b.done || !c.store.PositionsSeen() {
		return
	}
	if b.sent == nil {
		b.sent = make(map[state.PositionKey]bool)
		open := c.store.OpenPositions()
		if len(open) == 0 {
			b.done = true
			logs.Infof("client[%s]: boot flatten: no open positions", c.conn.Name())
			return
		}
		for _, p := range open {
			b.sent[p.Key()] = false
		}
	}

	if !b.canceled {
		if err := c.gateway.MassCancel(true); err != nil {
			return
		}
		b.canceled = true
	}

	pending := 0
	for key, sent := range b.sent {
		if sent {
			continue
		}
		qty := c.store.Position(key)
		if qty == 0 {
			b.sent[key] = true
			continue
		}
		price, ok := c.store.ExitPrice(key.Product, qty)
		if !ok {
			pending++
			continue
		}
		_, err := c.gateway.Submit(og.OrderRequest{
			Account: key.Account,
			Product: key.Product,
			Price:   price,
			Qty:     -qty,
			Worker:  og.DefaultWorker,
			Tag:     BootFlattenTag,
		})
		if err != nil {
			logs.Errorf("client[%s]: boot flatten %s %s, err: %+v", c.conn.Name(), key.Account, key.Product, err)
			pending++
			continue
		}
		b.sent[key] = true
	}
	if pending == 0 {
		b.done = true
		logs.Infof("client[%s]: boot flatten complete", c.conn.Name())
	}
}
