package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"synapse/auth"
	"synapse/contentstore"
	"synapse/contribution"
	"synapse/dataset"
	"synapse/purchase"
)

// Datasets is the read/update side of the dataset registry.
type Datasets interface {
	GetByID(ctx context.Context, id int64) (dataset.Record, error)
	List(ctx context.Context) ([]dataset.Record, error)
	ByOwner(ctx context.Context, address string) (dataset.OwnerView, error)
	UpdateDescriptive(ctx context.Context, id int64, params dataset.UpdateParams) (dataset.Record, error)
}

// Reconciling covers dataset registration and pool attachment.
type Reconciling interface {
	Register(ctx context.Context, params dataset.CreateParams) (dataset.Record, error)
	AttachPool(ctx context.Context, id int64) (dataset.Record, error)
}

// Purchasing covers the quote-approve-settle-confirm flow.
type Purchasing interface {
	Quote(ctx context.Context, datasetID int64, buyer string) (purchase.Quote, error)
	Approve(ctx context.Context, buyer string, amount int64) (string, error)
	Execute(ctx context.Context, datasetID int64, buyer string) (purchase.Receipt, error)
	Confirm(ctx context.Context, datasetID int64, buyer, txHash string) (purchase.Receipt, error)
}

// Contributing covers stake lifecycle and royalties.
type Contributing interface {
	Stake(ctx context.Context, poolID int64, contributor string, amount int64) (string, error)
	AcceptStake(ctx context.Context, poolID int64, caller, contributor string) (string, error)
	RejectStake(ctx context.Context, poolID int64, caller, contributor string) (string, error)
	WithdrawStake(ctx context.Context, poolID int64, contributor string) (string, error)
	Status(ctx context.Context, poolID int64, contributor string) (contribution.StakeStatus, error)
	Contributors(ctx context.Context, poolID int64) ([]string, error)
	PendingStakes(ctx context.Context, poolID int64) ([]contribution.IndexedStake, error)
	Royalty(ctx context.Context, address string) (int64, error)
	ClaimRoyalties(ctx context.Context, address string) (string, int64, error)
}

// Authenticating covers account management and token verification.
type Authenticating interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
	VerifyToken(token string) (userID, address string, err error)
}

// Server wires the settlement protocol services into an HTTP API.
type Server struct {
	datasets      Datasets
	reconciler    Reconciling
	purchases     Purchasing
	contributions Contributing
	accounts      Authenticating
	content       contentstore.Store
	log           *slog.Logger
}

func NewServer(
	datasets Datasets,
	reconciler Reconciling,
	purchases Purchasing,
	contributions Contributing,
	accounts Authenticating,
	content contentstore.Store,
	log *slog.Logger,
) *Server {
	return &Server{
		datasets:      datasets,
		reconciler:    reconciler,
		purchases:     purchases,
		contributions: contributions,
		accounts:      accounts,
		content:       content,
		log:           log,
	}
}

// Router builds the chi router with all protocol routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegisterAccount)
		r.Post("/auth/login", s.handleLogin)

		r.Get("/datasets", s.handleListDatasets)
		r.Get("/datasets/{id}", s.handleGetDataset)
		r.Get("/users/{address}/datasets", s.handleOwnerView)
		r.Get("/content/{hash}", s.handleGetContent)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/auth/me", s.handleMe)

			r.Post("/upload", s.handleUpload)
			r.Post("/datasets", s.handleRegisterDataset)
			r.Patch("/datasets/{id}", s.handleUpdateDataset)
			r.Post("/datasets/{id}/reconcile", s.handleReconcile)

			r.Get("/datasets/{id}/quote", s.handleQuote)
			r.Post("/datasets/{id}/approve", s.handleApprove)
			r.Post("/datasets/{id}/purchase", s.handlePurchase)
			r.Post("/datasets/{id}/confirm", s.handleConfirm)

			r.Post("/pools/{poolID}/stakes", s.handleStake)
			r.Delete("/pools/{poolID}/stakes", s.handleWithdrawStake)
			r.Get("/pools/{poolID}/stakes", s.handlePendingStakes)
			r.Get("/pools/{poolID}/stakes/{contributor}", s.handleStakeStatus)
			r.Post("/pools/{poolID}/stakes/{contributor}/accept", s.handleAcceptStake)
			r.Post("/pools/{poolID}/stakes/{contributor}/reject", s.handleRejectStake)
			r.Get("/pools/{poolID}/contributors", s.handleContributors)

			r.Get("/royalties", s.handleRoyalty)
			r.Post("/royalties/claim", s.handleClaimRoyalties)
		})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}
