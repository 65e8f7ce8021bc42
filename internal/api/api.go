// Package api exposes a minimal read-only HTTP surface for node status
// and chain exploration: /status, /blocks/{n}, /peers, /verify, and the
// Prometheus /metrics endpoint. It reads the store directly and never
// mutates anything — an operational collaborator boundary, not a wallet
// or submission API.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/libreledger/consensus-node/internal/chain"
	"github.com/libreledger/consensus-node/internal/consensus"
	"github.com/libreledger/consensus-node/internal/gossip"
	"github.com/libreledger/consensus-node/internal/log"
	"github.com/libreledger/consensus-node/internal/store"
)

var logger = log.NewModuleLogger(log.API)

// Server serves the status/explorer HTTP API.
type Server struct {
	store       *store.Store
	chain       *chain.Chain
	coordinator *consensus.Coordinator
	directory   *gossip.Directory
	handler     http.Handler
}

// New builds the API server's routes, wrapped in permissive CORS for
// browser-based explorer front ends.
func New(s *store.Store, ch *chain.Chain, co *consensus.Coordinator, dir *gossip.Directory) *Server {
	srv := &Server{store: s, chain: ch, coordinator: co, directory: dir}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", srv.handleStatus)
	mux.HandleFunc("/blocks/", srv.handleBlock)
	mux.HandleFunc("/peers", srv.handlePeers)
	mux.HandleFunc("/verify", srv.handleVerify)
	mux.Handle("/metrics", promhttp.Handler())

	srv.handler = cors.Default().Handler(mux)
	return srv
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	logger.Infow("status API listening", "addr", addr)
	return http.ListenAndServe(addr, s.handler)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.BlockCount()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	latest, err := s.store.LatestBlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"block_count":   count,
		"latest_block":  latest,
		"round_state":   s.coordinator.State().String(),
		"peers_known":   len(s.directory.All()),
	})
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	numStr := strings.TrimPrefix(r.URL.Path, "/blocks/")
	n, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid block number", http.StatusBadRequest)
		return
	}
	block, err := s.store.GetBlock(n)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if block == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, block)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.directory.All())
}

// handleVerify walks the full local chain (or, with ?from=&to=, a
// sub-range) and reports the first header inconsistency found.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	from := uint64(0)
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = n
	}

	to := from
	if v := r.URL.Query().Get("to"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		to = n
	} else if v := r.URL.Query().Get("from"); v == "" {
		count, err := s.store.BlockCount()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if count > 0 {
			to = uint64(count - 1)
		}
	}

	if err := s.chain.Verify(from, to); err != nil {
		writeJSON(w, map[string]interface{}{"valid": false, "error": err.Error()})
		return
	}
	writeJSON(w, map[string]interface{}{"valid": true, "from": from, "to": to})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorw("failed to encode response", "err", err)
	}
}
