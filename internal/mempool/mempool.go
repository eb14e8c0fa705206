// Package mempool holds candidate transactions and FastGraph wrappers
// awaiting inclusion in the next assembled block: a concurrent-safe,
// dedup-by-id staging area BlockFactory drains from.
package mempool

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coraxum/coraxumd/fastgraph"
	"github.com/coraxum/coraxumd/txn"
)

var pendingDepth = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "coraxum",
	Subsystem: "mempool",
	Name:      "pending_transactions",
	Help:      "Number of transactions currently staged in the pool.",
})

func init() {
	prometheus.MustRegister(pendingDepth)
}

// Pool is a concurrent-safe set of pending transactions and FastGraph
// wrappers, keyed by their signature (Transaction.ID / Base.ID) so a
// resubmission is a no-op rather than a duplicate entry.
type Pool struct {
	mu         sync.Mutex
	txns       map[string]*txn.Transaction
	fastgraphs map[string]*fastgraph.FastGraph
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{
		txns:       make(map[string]*txn.Transaction),
		fastgraphs: make(map[string]*fastgraph.FastGraph),
	}
}

// AddTransaction stages t, returning a correlation id for log lines; it is
// a no-op if a transaction with the same ID is already pending.
func (p *Pool) AddTransaction(t *txn.Transaction) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.txns[t.ID]; !ok {
		p.txns[t.ID] = t
	}
	pendingDepth.Set(float64(len(p.txns)))
	return uuid.NewString()
}

// AddFastGraph stages fg, keyed by its base transaction's ID.
func (p *Pool) AddFastGraph(fg *fastgraph.FastGraph) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fastgraphs[fg.Base.ID]; !ok {
		p.fastgraphs[fg.Base.ID] = fg
	}
	return uuid.NewString()
}

// Transactions returns a snapshot of every pending transaction, safe for
// BlockFactory to iterate without holding the pool's lock.
func (p *Pool) Transactions() []*txn.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*txn.Transaction, 0, len(p.txns))
	for _, t := range p.txns {
		out = append(out, t)
	}
	return out
}

// PendingByOutputAddress implements utxo.FastgraphPool: every pending
// FastGraph wrapper whose base transaction pays address.
func (p *Pool) PendingByOutputAddress(address string) []*fastgraph.FastGraph {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*fastgraph.FastGraph
	for _, fg := range p.fastgraphs {
		for _, out2 := range fg.Base.Outputs {
			if out2.To == address {
				out = append(out, fg)
				break
			}
		}
	}
	return out
}

// SpendsInput implements utxo.FastgraphPool: whether any pending FastGraph
// owned by publicKey already consumes inputID.
func (p *Pool) SpendsInput(publicKey, inputID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, fg := range p.fastgraphs {
		if fg.Base.PublicKey != publicKey {
			continue
		}
		for _, in := range fg.Base.Inputs {
			if in.ID == inputID {
				return true
			}
		}
	}
	return false
}

// Remove drops transactions whose ID matches one of ids, called once a
// block containing them commits.
func (p *Pool) Remove(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.txns, id)
		delete(p.fastgraphs, id)
	}
	pendingDepth.Set(float64(len(p.txns)))
}
