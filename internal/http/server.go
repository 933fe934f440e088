package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockledger/internal/config"
	"stockledger/internal/domain"
	"stockledger/internal/ledger"
)

type Server struct {
	cfg     config.Config
	ledger  *ledger.Ledger
	logger  *zap.Logger
	metrics http.Handler
}

// NewServer wires the ledger behind the JSON API. metricsHandler may be nil.
func NewServer(cfg config.Config, ldg *ledger.Ledger, logger *zap.Logger, metricsHandler http.Handler) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		ledger:  ldg,
		logger:  logger,
		metrics: metricsHandler,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID, middleware.RealIP, withLogging(s.logger), middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/summary", s.handleSummary)
	r.Get("/history", s.handleHistory)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/admin/login", s.handleAdminLogin)

	r.Group(func(mut chi.Router) {
		if s.cfg.AuthEnabled() {
			mut.Use(s.requireAdmin)
		}
		mut.Post("/purchase", s.handlePurchase)
		mut.Post("/sale", s.handleSale)
		mut.Post("/balance", s.handleBalance)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type warehouseItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	items := s.ledger.Items()
	out := make([]warehouseItem, 0, len(items))
	for name, p := range items {
		out = append(out, warehouseItem{Name: name, Price: p.Price, Quantity: p.Quantity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":         s.ledger.Balance(),
		"currency":        s.ledger.Currency(),
		"stock_level":     s.ledger.StockTotal(),
		"warehouse_items": out,
	})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductName string           `json:"product_name"`
		Quantity    *int64           `json:"quantity"`
		Price       *decimal.Decimal `json:"price"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ProductName) == "" || req.Quantity == nil || req.Price == nil {
		writeError(w, http.StatusBadRequest, "product_name, quantity and price are required")
		return
	}
	res := s.ledger.Purchase(ledgerContext(r), req.ProductName, *req.Quantity, *req.Price)
	s.writeResult(w, r, "purchase", res)
}

func (s *Server) handleSale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductName string `json:"product_name"`
		Quantity    *int64 `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ProductName) == "" || req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "product_name and quantity are required")
		return
	}
	res := s.ledger.Sell(ledgerContext(r), req.ProductName, *req.Quantity)
	s.writeResult(w, r, "sale", res)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperationType string           `json:"operation_type"`
		Amount        *decimal.Decimal `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OperationType == "" || req.Amount == nil {
		writeError(w, http.StatusBadRequest, "operation_type and amount are required")
		return
	}
	direction := domain.Direction(strings.ToLower(strings.TrimSpace(req.OperationType)))
	res := s.ledger.AdjustBalance(ledgerContext(r), direction, *req.Amount)
	s.writeResult(w, r, "balance_"+string(direction), res)
}

type historyRecord struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

type historyResponse struct {
	Records []historyRecord `json:"records"`
	Count   int             `json:"count"`
	Total   int             `json:"total"`
	Warning string          `json:"warning,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, valid := ledger.ParseRange(q.Get("line_from"), q.Get("line_to"))

	lines, offset := s.ledger.History(from, to)
	resp := historyResponse{
		Records: make([]historyRecord, 0, len(lines)),
		Count:   len(lines),
		Total:   s.ledger.HistoryLen(),
	}
	for i, line := range lines {
		resp.Records = append(resp.Records, historyRecord{Line: offset + i + 1, Text: line})
	}
	switch {
	case !valid:
		resp.Warning = "line_from and line_to must be whole numbers, showing the full history"
	case (from != nil || to != nil) && len(lines) == 0:
		resp.Warning = "no history in the requested range, or the range is invalid"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.AuthEnabled() {
		writeError(w, http.StatusNotFound, "admin login is disabled")
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.cfg.AdminPassword == "" || !equalSecret(req.Username, s.cfg.AdminUsername) || !equalSecret(req.Password, s.cfg.AdminPassword) {
		s.logger.Warn("admin login rejected", zap.String("username", req.Username), zap.String("request_id", RequestIDFromContext(r.Context())))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := s.signAdminToken(req.Username)
	if err != nil {
		s.logger.Error("sign admin token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create admin token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
		"type":       "Bearer",
	})
}

func (s *Server) signAdminToken(subject string) (string, time.Time, error) {
	ttl := s.cfg.AdminTokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		var claims jwt.RegisteredClaims
		parsed, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyAdminSubject, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeResult maps a ledger outcome onto 200 or 422 and logs who asked for it.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, operation string, res domain.Result) {
	status := http.StatusOK
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	s.logger.Info("ledger operation",
		zap.String("operation", operation),
		zap.Bool("success", res.OK),
		zap.String("admin", AdminSubjectFromContext(r.Context())),
		zap.String("request_id", RequestIDFromContext(r.Context())),
	)
	writeJSON(w, status, map[string]interface{}{
		"success":  res.OK,
		"message":  res.Message,
		"balance":  s.ledger.Balance(),
		"currency": s.ledger.Currency(),
	})
}

// ledgerContext detaches the request context so a client hanging up does not
// abort a save that already changed in-memory state.
func ledgerContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func equalSecret(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

var errEmptyBody = errors.New("request body is empty")

func decodeJSON(r *http.Request, target interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
