// Package txpool is the in-memory set of unexecuted transactions, keyed
// by transaction id and owned exclusively by the consensus coordinator.
// It is deliberately the simplest component in the node: dedup-by-id,
// drain-in-deterministic-order, clear-on-apply.
package txpool

import (
	"sort"
	"sync"

	"github.com/libreledger/consensus-node/internal/model"
)

// Pool is a mapping tx_id -> Transaction with a deterministic drain order.
type Pool struct {
	mu  sync.Mutex
	txs map[string]*model.Transaction
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{txs: make(map[string]*model.Transaction)}
}

// Insert adds tx to the pool. A transaction already present under the
// same tx_id is silently ignored — the caller is not told whether the
// insert happened, matching the data model's "rejects duplicates
// silently" contract.
func (p *Pool) Insert(tx *model.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.txs[tx.TxID]; exists {
		return
	}
	p.txs[tx.TxID] = tx
}

// Len reports the current pool size.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

// DrainOrdered returns every pooled transaction ordered by ascending
// tx_id (compared as raw bytes) without modifying the pool. The pool is
// only ever emptied by Clear, called once a round's snapshot actually
// commits — not here, and not at proposal time.
func (p *Pool) DrainOrdered() []*model.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*model.Transaction, 0, len(p.txs))
	for _, tx := range p.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TxID < out[j].TxID })
	return out
}

// Clear empties the pool. Called only when a round's snapshot commits via
// ApplySnapshot, whether or not every pooled transaction executed:
// unexecuted transactions are dropped too, and the sender must resubmit.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs = make(map[string]*model.Transaction)
}
