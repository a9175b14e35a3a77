// Package api serves the simulator's market data: REST snapshots and a
// WebSocket feed of ticks, fills and books. It is read-only; orders only
// enter through execution plans.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/algosim/pkg/app/core"
	"github.com/uhyunpark/algosim/pkg/app/sim"
	"github.com/uhyunpark/algosim/pkg/storage"
)

const (
	defaultBookDepth  = 20
	defaultTradeLimit = 100
)

// Server handles REST API and WebSocket connections
type Server struct {
	sim    *sim.Simulator
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer creates a server over s and subscribes it to the simulator's
// tick and trade hooks. logger may be nil.
func NewServer(s *sim.Simulator, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	srv := &Server{
		sim:    s,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		log:    logger,
	}
	srv.setupRoutes()

	s.OnTick = srv.onTick
	s.OnTrade = srv.onTrade
	return srv
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market data
	api.HandleFunc("/assets", s.handleGetAssets).Methods("GET")
	api.HandleFunc("/assets/{asset}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/assets/{asset}/price", s.handleGetPrice).Methods("GET")

	// Ledger
	api.HandleFunc("/participants/{id:[0-9]+}", s.handleGetParticipant).Methods("GET")
	api.HandleFunc("/participants/{id:[0-9]+}/orders", s.handleGetOrders).Methods("GET")

	// Tape
	api.HandleFunc("/runs", s.handleGetRuns).Methods("GET")
	api.HandleFunc("/runs/{run}", s.handleGetRun).Methods("GET")
	api.HandleFunc("/runs/{run}/trades", s.handleGetRunTrades).Methods("GET")
	api.HandleFunc("/runs/{run}/ticks", s.handleGetRunTicks).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in the CORS policy.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Infow("api_listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	assets := s.sim.Assets()
	response := make([]AssetInfo, len(assets))
	for i, a := range assets {
		price, _ := s.sim.Price(i)
		response[i] = AssetInfo{
			ID:         i,
			Symbol:     a.Symbol,
			StartPrice: a.StartPrice,
			Beta:       a.Beta,
			Supply:     a.Supply,
			Price:      price,
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	asset, symbol, err := s.resolveAsset(mux.Vars(r)["asset"])
	if err != nil {
		respondError(w, http.StatusNotFound, "asset not found", err.Error())
		return
	}
	depth, err := queryInt(r, "depth", defaultBookDepth)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid depth", err.Error())
		return
	}
	respondJSON(w, s.snapshot(asset, symbol, depth))
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	asset, symbol, err := s.resolveAsset(mux.Vars(r)["asset"])
	if err != nil {
		respondError(w, http.StatusNotFound, "asset not found", err.Error())
		return
	}
	price, err := s.sim.Price(asset)
	if err != nil {
		respondError(w, http.StatusNotFound, "asset not found", err.Error())
		return
	}
	respondJSON(w, PriceInfo{Asset: asset, Symbol: symbol, Price: price, Tick: s.sim.Ticks()})
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	p, err := s.sim.Participant(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "participant not found", err.Error())
		return
	}

	response := ParticipantInfo{ID: p.ID, Unbounded: p.Unbounded}
	if !p.Unbounded {
		response.Cash = p.Cash
		response.LockedCash = p.LockedCash
		response.Holdings = p.Holdings
		response.LockedHoldings = p.LockedHoldings
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	if _, err := s.sim.Participant(id); err != nil {
		respondError(w, http.StatusNotFound, "participant not found", err.Error())
		return
	}
	orders := s.sim.OpenOrders(id)
	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = OrderInfo{
			ID:        o.ID,
			Asset:     o.Asset,
			Side:      o.Side.String(),
			Price:     o.Price,
			Remaining: o.Remaining,
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.sim.Tape().Runs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "tape read failed", err.Error())
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	respondJSON(w, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.sim.Tape().Run(mux.Vars(r)["run"])
	if err != nil {
		respondTapeError(w, err)
		return
	}
	respondJSON(w, run)
}

func (s *Server) handleGetRunTrades(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["run"]
	if _, err := s.sim.Tape().Run(id); err != nil && s.sim.Running() != id {
		respondTapeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultTradeLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	trades, err := s.sim.Tape().Trades(id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "tape read failed", err.Error())
		return
	}
	if trades == nil {
		trades = []storage.TradeRecord{}
	}
	respondJSON(w, trades)
}

func (s *Server) handleGetRunTicks(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["run"]
	if _, err := s.sim.Tape().Run(id); err != nil && s.sim.Running() != id {
		respondTapeError(w, err)
		return
	}
	ticks, err := s.sim.Tape().Ticks(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "tape read failed", err.Error())
		return
	}
	if ticks == nil {
		ticks = []storage.TickRecord{}
	}
	respondJSON(w, ticks)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthStatus{Status: "ok", Ticks: s.sim.Ticks(), Running: s.sim.Running()})
}

// ==============================
// Broadcast Methods (called from the simulator hooks)
// ==============================

func (s *Server) onTick(ev sim.TickEvent) {
	s.hub.BroadcastToChannel("ticks", TickUpdate{
		Type:   "tick",
		Run:    ev.Run,
		Tick:   ev.Tick,
		Prices: ev.Prices,
	})
	for asset := range ev.Prices {
		s.BroadcastBook(asset)
	}
}

func (s *Server) onTrade(ev sim.TradeEvent) {
	s.hub.BroadcastToChannel(fmt.Sprintf("trades:%d", ev.Asset), TradeUpdate{
		Type:   "trade",
		Run:    ev.Run,
		Seq:    ev.Seq,
		Asset:  ev.Asset,
		Side:   ev.TakerSide.String(),
		Price:  ev.Price,
		Size:   ev.Qty,
		Buyer:  ev.Buyer(),
		Seller: ev.Seller(),
	})
}

// BroadcastBook pushes the book of asset to its subscribers.
func (s *Server) BroadcastBook(asset int) {
	channel := fmt.Sprintf("book:%d", asset)
	if !s.hub.HasSubscribers(channel) {
		return
	}
	assets := s.sim.Assets()
	if asset < 0 || asset >= len(assets) {
		return
	}
	s.hub.BroadcastToChannel(channel, BookUpdate{
		Type:              "book",
		OrderbookSnapshot: s.snapshot(asset, assets[asset].Symbol, defaultBookDepth),
	})
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) snapshot(asset int, symbol string, depth int) OrderbookSnapshot {
	return OrderbookSnapshot{
		Asset:  asset,
		Symbol: symbol,
		Bids:   toLevels(s.sim.Levels(asset, core.Buy, depth)),
		Asks:   toLevels(s.sim.Levels(asset, core.Sell, depth)),
		Tick:   s.sim.Ticks(),
	}
}

// resolveAsset accepts an asset id or its symbol.
func (s *Server) resolveAsset(v string) (int, string, error) {
	assets := s.sim.Assets()
	if id, err := strconv.Atoi(v); err == nil {
		if id < 0 || id >= len(assets) {
			return 0, "", fmt.Errorf("%w: %d", core.ErrUnknownAsset, id)
		}
		return id, assets[id].Symbol, nil
	}
	for i, a := range assets {
		if a.Symbol == v {
			return i, a.Symbol, nil
		}
	}
	return 0, "", fmt.Errorf("%w: %s", core.ErrUnknownAsset, v)
}

func toLevels(levels []core.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Size: l.Qty}
	}
	return out
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

func respondTapeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found", err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, "tape read failed", err.Error())
}
