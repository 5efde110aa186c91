package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"walletcsv/internal/application"
	"walletcsv/internal/assistant"
	"walletcsv/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

type Exporter interface {
	Export(ctx context.Context, chain domain.Chain, address string, progress application.ProgressFunc) (application.Result, error)
}

type ChainScanner interface {
	Scan(ctx context.Context, chains []domain.Chain, address string) (application.ScanResult, error)
}

type SettingsStore interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	Runs(ctx context.Context, filter application.RunQuery) ([]domain.ExportRun, error)
	Ping(ctx context.Context) error
}

type ArchiveReader interface {
	QueryTransactions(ctx context.Context, filter application.ArchiveQuery) ([]domain.Transaction, error)
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Config struct {
	CORSOrigins []string
	// RateLimit is the sustained requests per second across all clients.
	// Zero disables limiting.
	RateLimit   float64
	SessionTTL  time.Duration
}

// Deps are the collaborators of the server. Chains, Exporter and Scanner
// are required; a nil Archive or Assistant disables its routes.
type Deps struct {
	Chains    application.ChainDirectory
	Exporter  Exporter
	Scanner   ChainScanner
	Settings  SettingsStore
	Archive   ArchiveReader
	Assistant *assistant.Agent
	Metrics   *Metrics
}

type Server struct {
	cfg       Config
	deps      Deps
	metrics   *Metrics
	buildInfo BuildInfo
	sessions  *cache.Cache
	limiter   *rate.Limiter
}

func NewServer(cfg Config, deps Deps, buildInfo BuildInfo) (*Server, error) {
	if deps.Chains == nil || deps.Exporter == nil || deps.Scanner == nil || deps.Settings == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	s := &Server{
		cfg:       cfg,
		deps:      deps,
		metrics:   deps.Metrics,
		buildInfo: buildInfo,
		sessions:  cache.New(cfg.SessionTTL, 2*cfg.SessionTTL),
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(int(cfg.RateLimit)*2, 1))
	}
	return s, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/version", s.handleVersion)
	r.Get("/metrics", s.handleMetrics)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/chains", s.handleChains)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/export", s.handleExport)
		r.Post("/scan", s.handleScan)
		r.Get("/rows/search", s.handleSearch)
		r.Get("/runs", s.handleRuns)
		r.Get("/archive/transactions", s.handleArchive)
		r.Post("/chat", s.handleChat)
		r.Get("/settings/{key}", s.handleGetSetting)
		r.Put("/settings/{key}", s.handlePutSetting)
	})
	return r
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("http api listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.metrics.IncRateLimited()
			slog.Warn("rate limit exceeded", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Settings.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "settings db not ready")
		return
	}
	if _, err := s.deps.Chains.Chains(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "chain directory not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.Snapshot().WriteText(w)
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	chains, err := s.deps.Chains.Chains(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "chain directory unavailable")
		return
	}
	if r.URL.Query().Get("include_testnets") != "true" {
		mainnets := make([]domain.Chain, 0, len(chains))
		for _, chain := range chains {
			if !chain.IsTestnet {
				mainnets = append(mainnets, chain)
			}
		}
		chains = mainnets
	}
	respondJSON(w, http.StatusOK, chains)
}

type transactionsResponse struct {
	Run          domain.ExportRun         `json:"run"`
	Transactions []domain.Transaction     `json:"transactions"`
	Rows         []domain.Row             `json:"rows"`
	Tags         application.TagBreakdown `json:"tags"`
	Skipped      []string                 `json:"skipped,omitempty"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	result, ok := s.export(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, transactionsResponse{
		Run:          result.Run,
		Transactions: result.Transactions,
		Rows:         result.Rows,
		Tags:         result.Tags,
		Skipped:      result.Skipped,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	result, ok := s.export(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Run.Filename))
	if result.Run.Partial {
		w.Header().Set("X-Export-Partial", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.CSV))
}

// export resolves the chain and address query parameters and runs an
// export. It writes the error response itself when ok is false.
func (s *Server) export(w http.ResponseWriter, r *http.Request) (application.Result, bool) {
	chain, address, ok := s.chainAndAddress(w, r, r.URL.Query().Get("chain"), r.URL.Query().Get("address"))
	if !ok {
		return application.Result{}, false
	}
	result, err := s.deps.Exporter.Export(r.Context(), chain, address, nil)
	if err != nil {
		slog.Error("export failed", "chain", chain.Name, "address", address, "err", err)
		respondError(w, http.StatusBadGateway, err.Error())
		return application.Result{}, false
	}
	return result, true
}

func (s *Server) chainAndAddress(w http.ResponseWriter, r *http.Request, chainName, rawAddress string) (domain.Chain, string, bool) {
	address, err := application.NormalizeAddress(rawAddress)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return domain.Chain{}, "", false
	}
	if strings.TrimSpace(chainName) == "" {
		respondError(w, http.StatusBadRequest, "chain is required")
		return domain.Chain{}, "", false
	}
	chains, err := s.deps.Chains.Chains(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "chain directory unavailable")
		return domain.Chain{}, "", false
	}
	chain, err := findChain(chains, chainName)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return domain.Chain{}, "", false
	}
	return chain, address, true
}

// findChain accepts a chain id as well as a name.
func findChain(chains []domain.Chain, key string) (domain.Chain, error) {
	for _, chain := range chains {
		if chain.ID == key {
			return chain, nil
		}
	}
	return application.FindChain(chains, key)
}

type scanRequest struct {
	Address string   `json:"address"`
	Chains  []string `json:"chains"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	address, err := application.NormalizeAddress(req.Address)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	chains, err := s.deps.Chains.Chains(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "chain directory unavailable")
		return
	}
	targets := application.MatchChains(chains, req.Chains)
	if len(targets) == 0 {
		respondError(w, http.StatusNotFound, "no matching chains")
		return
	}
	result, err := s.deps.Scanner.Scan(r.Context(), targets, address)
	if err != nil {
		respondError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"result":  result,
		"summary": result.Summary(address),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSearchFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, ok := s.export(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, application.SearchRows(result.Rows, filter))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.deps.Settings.Runs(r.Context(), application.RunQuery{
		ChainID: r.URL.Query().Get("chain_id"),
		Address: strings.ToLower(r.URL.Query().Get("address")),
		Limit:   limit,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.deps.Archive == nil {
		respondError(w, http.StatusNotFound, "archive is not configured")
		return
	}
	filter, err := parseArchiveQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	transactions, err := s.deps.Archive.QueryTransactions(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	respondJSON(w, http.StatusOK, transactions)
}

type chatRequest struct {
	SessionID   string              `json:"session_id"`
	Messages    []assistant.Message `json:"messages"`
	AutoApprove bool                `json:"auto_approve"`
}

type chatResponse struct {
	SessionID string              `json:"session_id"`
	Reply     string              `json:"reply"`
	Status    []assistant.Message `json:"status"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		respondError(w, http.StatusServiceUnavailable, "llm provider is not configured")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Messages) == 0 {
		respondError(w, http.StatusBadRequest, "messages are required")
		return
	}

	session := s.session(req.SessionID)
	agent := s.deps.Assistant
	if req.AutoApprove {
		agent = agent.WithConfirmer(assistant.ApproveAll)
	}
	result, err := agent.Chat(r.Context(), session, req.Messages, nil)
	if err != nil {
		slog.Error("chat failed", "session", session.ID, "err", err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{SessionID: session.ID, Reply: result.Reply, Status: result.Status})
}

func (s *Server) session(id string) *assistant.Session {
	if id != "" {
		if cached, ok := s.sessions.Get(id); ok {
			session := cached.(*assistant.Session)
			s.sessions.SetDefault(id, session)
			return session
		}
	}
	session := assistant.NewSession()
	s.sessions.SetDefault(session.ID, session)
	return session
}

type settingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Set   bool   `json:"set"`
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !application.KnownSetting(key) {
		respondError(w, http.StatusNotFound, "unknown setting")
		return
	}
	value, ok, err := s.deps.Settings.Setting(r.Context(), key)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "settings read failed")
		return
	}
	if application.SecretSetting(key) {
		value = application.MaskSecret(value)
	}
	respondJSON(w, http.StatusOK, settingResponse{Key: key, Value: value, Set: ok})
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.deps.Settings.SetSetting(r.Context(), key, strings.TrimSpace(body.Value)); err != nil {
		if errors.Is(err, application.ErrUnknownSetting) {
			respondError(w, http.StatusNotFound, "unknown setting")
			return
		}
		respondError(w, http.StatusInternalServerError, "settings write failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseSearchFilter(r *http.Request) (application.SearchFilter, error) {
	q := r.URL.Query()
	filter := application.SearchFilter{
		Query:    q.Get("query"),
		Tag:      q.Get("tag"),
		Currency: q.Get("currency"),
	}
	var err error
	if raw := q.Get("offset"); raw != "" {
		if filter.Offset, err = strconv.Atoi(raw); err != nil || filter.Offset < 0 {
			return filter, errors.New("invalid offset")
		}
	}
	if filter.From, err = parseDate(q.Get("from"), "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseDate(q.Get("to"), "to"); err != nil {
		return filter, err
	}
	if filter.MinAmount, err = parseDecimal(q.Get("min_amount"), "min_amount"); err != nil {
		return filter, err
	}
	if filter.MaxAmount, err = parseDecimal(q.Get("max_amount"), "max_amount"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseArchiveQuery(r *http.Request) (application.ArchiveQuery, error) {
	q := r.URL.Query()
	limit, err := parseLimit(r)
	if err != nil {
		return application.ArchiveQuery{}, err
	}
	since, err := parseDate(q.Get("since"), "since")
	if err != nil {
		return application.ArchiveQuery{}, err
	}
	until, err := parseDate(q.Get("until"), "until")
	if err != nil {
		return application.ArchiveQuery{}, err
	}
	return application.ArchiveQuery{
		ChainID: q.Get("chain_id"),
		Address: strings.ToLower(q.Get("address")),
		TxHash:  strings.ToLower(q.Get("tx_hash")),
		Since:   since,
		Until:   until,
		Limit:   limit,
	}, nil
}

func parseLimit(r *http.Request) (int, error) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, errors.New("invalid limit")
		}
		return value, nil
	}
	return 100, nil
}

func parseDate(raw, key string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid %s", key)
}

func parseDecimal(raw, key string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &value, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
