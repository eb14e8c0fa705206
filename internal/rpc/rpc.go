// Package rpc implements the JSON-over-HTTP external interface described
// in the data model: getblocktemplate, submitblock, get_balance, getheight,
// transfer, and get_bulk_payments, grounded on the endpoints exposed by
// original_source/yadacoin's Tornado handlers and rate-limited the way
// exccd's RPC server guards itself, via golang.org/x/time/rate.
package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/slog"
	"golang.org/x/time/rate"

	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/chaincfg"
	"github.com/coraxum/coraxumd/consensus"
	"github.com/coraxum/coraxumd/internal/mempool"
	"github.com/coraxum/coraxumd/miner"
	"github.com/coraxum/coraxumd/store"
	"github.com/coraxum/coraxumd/txn"
	"github.com/coraxum/coraxumd/utxo"
)

var (
	errNoProducerKey  = errors.New("rpc: server has no configured producer key")
	errMissingBlock   = errors.New("rpc: missing block")
	errMissingAddress = errors.New("rpc: missing address")
	errNonceLength    = errors.New("rpc: nonce is empty or exceeds MaxNonceLen")
)

// Server answers the node's JSON RPC surface over HTTP.
type Server struct {
	store   store.BlockStore
	utxo    *utxo.Index
	pool    *mempool.Pool
	factory *miner.BlockFactory
	net     chaincfg.Network
	log     slog.Logger
	cfg     Config

	limiter *rate.Limiter
}

// Config carries the block producer's keypair, used by getblocktemplate to
// sign the coinbase it returns a template for.
type Config struct {
	ProducerPubKeyHex string
	ProducerPrivKey   *secp256k1.PrivateKey
}

// New returns a Server backed by s, idx, and p, rate-limited to rps
// requests per second with a burst of rps*2+1.
func New(s store.BlockStore, idx *utxo.Index, p *mempool.Pool, f *miner.BlockFactory, net chaincfg.Network, log slog.Logger, cfg Config, rps float64) *Server {
	return &Server{
		store:   s,
		utxo:    idx,
		pool:    p,
		factory: f,
		net:     net,
		log:     log,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps*2)+1),
	}
}

// Handler returns the http.Handler routing every recognized method under
// its own path, mirroring the flat endpoint-per-verb layout the original
// Tornado app uses instead of a single JSON-RPC dispatch method.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/getblocktemplate", s.withLimit(s.handleGetBlockTemplate))
	mux.HandleFunc("/submitblock", s.withLimit(s.handleSubmitBlock))
	mux.HandleFunc("/get_balance", s.withLimit(s.handleGetBalance))
	mux.HandleFunc("/getheight", s.withLimit(s.handleGetHeight))
	mux.HandleFunc("/transfer", s.withLimit(s.handleTransfer))
	mux.HandleFunc("/get_bulk_payments", s.withLimit(s.handleGetBulkPayments))
	mux.HandleFunc("/gethashrate", s.withLimit(s.handleGetHashRate))
	return mux
}

// hashRateWindow is the number of most-recent blocks sampled by
// handleGetHashRate, wide enough to smooth out single-block timing noise
// without requiring a full retarget window's worth of history.
const hashRateWindow = 120

func (s *Server) withLimit(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

type blockTemplateResponse struct {
	Index      int64  `json:"index"`
	PrevHash   string `json:"prev_hash"`
	Time       string `json:"time"`
	Target     string `json:"target"`
	Header     string `json:"header"`
	SpecialMin bool   `json:"special_min"`
}

// handleGetBlockTemplate assembles the next candidate block from the
// current mempool contents and returns its header for the caller to mine.
func (s *Server) handleGetBlockTemplate(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ProducerPrivKey == nil {
		writeError(w, http.StatusServiceUnavailable, errNoProducerKey)
		return
	}

	ctx := r.Context()
	height, err := s.store.Height(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	b, err := s.factory.Assemble(ctx, s.pool.Transactions(), s.cfg.ProducerPubKeyHex, s.cfg.ProducerPrivKey, height+1, timeNowUnix())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, blockTemplateResponse{
		Index:      b.Index,
		PrevHash:   b.PrevHash,
		Time:       b.Time,
		Target:     b.TargetHex(),
		Header:     b.Header,
		SpecialMin: b.SpecialMin,
	})
}

type submitBlockRequest struct {
	Block *block.Block `json:"block"`
}

// handleSubmitBlock appends a fully-mined block to the store after the
// caller's own verification; BlockVerifier runs at ingestion in the gossip
// layer, not here, so a locally-submitted block is trusted to already be
// correct — submitblock exists for local miners, not untrusted peers.
func (s *Server) handleSubmitBlock(w http.ResponseWriter, r *http.Request) {
	var req submitBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Block == nil {
		writeError(w, http.StatusBadRequest, errMissingBlock)
		return
	}
	if len(req.Block.Nonce) == 0 || len(req.Block.Nonce) > chaincfg.MaxNonceLen {
		writeError(w, http.StatusBadRequest, errNonceLength)
		return
	}
	if err := s.store.Append(r.Context(), req.Block); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	var ids []string
	for _, t := range req.Block.Transactions {
		ids = append(ids, t.ID)
	}
	s.pool.Remove(ids)
	writeJSON(w, map[string]bool{"accepted": true})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("address")
	if addr == "" {
		writeError(w, http.StatusBadRequest, errMissingAddress)
		return
	}
	bal, err := s.utxo.Balance(r.Context(), addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]string{"balance": bal.String()})
}

func (s *Server) handleGetHeight(w http.ResponseWriter, r *http.Request) {
	h, err := s.store.Height(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]int64{"height": h})
}

type transferRequest struct {
	PublicKey string `json:"public_key"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Fee       string `json:"fee"`
}

// handleTransfer builds and returns an unsigned transaction skeleton for a
// client to sign and resubmit; it does not add the skeleton to the pool.
// coraxumd itself never holds a user's private key, matching the
// original's client-side signing model.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	value, err := amount.Parse(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fee := amount.Zero
	if req.Fee != "" {
		fee, err = amount.Parse(req.Fee)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	t := &txn.Transaction{
		PublicKey: req.PublicKey,
		Time:      strconv.FormatInt(timeNowUnix(), 10),
		Fee:       fee,
		Outputs:   []txn.Output{{To: req.To, Value: value}},
	}
	writeJSON(w, t)
}

type bulkPaymentsRequest struct {
	Address string `json:"address"`
	Since   int64  `json:"since"`
}

// handleGetBulkPayments reports the unspent outputs of the requested
// address, the pool-payout reconciliation endpoint mining pools poll. The
// request's since field is decoded but not applied: every unspent output is
// returned, whenever it was received.
func (s *Server) handleGetBulkPayments(w http.ResponseWriter, r *http.Request) {
	var req bulkPaymentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entries, err := s.utxo.UnspentOutputs(r.Context(), req.Address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]any{"payments": entries})
}

// handleGetHashRate reports an estimated network hash rate, a diagnostic
// extension beyond spec.md's RPC surface (see consensus.EstimateHashRate).
func (s *Server) handleGetHashRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	height, err := s.store.Height(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	lo := height - hashRateWindow + 1
	if lo < 0 {
		lo = 0
	}
	blocks, err := s.store.Range(ctx, lo, height+1, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	rate, sampleHashes := consensus.EstimateHashRate(blocks)
	writeJSON(w, map[string]float64{"hash_rate": rate, "sample_hashes": sampleHashes})
}

func timeNowUnix() int64 {
	return time.Now().Unix()
}
