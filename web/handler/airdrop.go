package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/screwyprof/airdrop/airdrop"
	"github.com/screwyprof/airdrop/pkg/httpkit"
	"github.com/screwyprof/airdrop/pkg/logger"
	"github.com/screwyprof/airdrop/pkg/metrics"
	"github.com/screwyprof/airdrop/web/api"
	"github.com/screwyprof/airdrop/web/handler/bind"
)

// Routes served by the airdrop handler
const (
	GetDistributionRoute  = http.MethodGet + " " + "/airdrop"
	GetClaimStatusRoute   = http.MethodGet + " " + "/airdrop/claims/{address}"
	DepositRoute          = http.MethodPost + " " + "/airdrop/deposit"
	ClaimRoute            = http.MethodPost + " " + "/airdrop/claim"
	ClaimAndTransferRoute = http.MethodPost + " " + "/airdrop/claim-and-transfer"
	ClaimForRoute         = http.MethodPost + " " + "/airdrop/claim-for"
	RetrieveRoute         = http.MethodPost + " " + "/airdrop/retrieve"
	UpdateMerkleRootRoute = http.MethodPut + " " + "/airdrop/merkle-root"
	UpdateExpirationRoute = http.MethodPut + " " + "/airdrop/expiration"
	GetEventsRoute        = http.MethodGet + " " + "/airdrop/events"
)

// Operation labels for metrics and receipts
const (
	OpDeposit          = "deposit"
	OpClaim            = "claim"
	OpClaimAndTransfer = "claim-and-transfer"
	OpClaimFor         = "claim-for"
	OpRetrieve         = "retrieve-unclaimed"
	OpUpdateMerkleRoot = "update-merkle-root"
	OpUpdateExpiration = "update-expiration"
)

// Sentinel errors
var (
	ErrQueryFailed = errors.New("failed to query distribution")
)

// Distribution is the state machine served over HTTP
type Distribution interface {
	Address() common.Address
	Config() airdrop.Config
	Expired() bool
	PoolBalance(ctx context.Context) (*uint256.Int, error)
	IsClaimed(ctx context.Context, account common.Address) (bool, error)

	Deposit(ctx context.Context, depositor common.Address, amount *uint256.Int) error
	Claim(ctx context.Context, beneficiary common.Address, amount *uint256.Int, proof []common.Hash) error
	ClaimAndTransfer(ctx context.Context, caller, destination common.Address, amount *uint256.Int, proof []common.Hash) error
	ClaimAndSendToClaimee(ctx context.Context, caller, beneficiary common.Address, amount *uint256.Int, proof []common.Hash) error
	RetrieveUnclaimedTokens(ctx context.Context, caller common.Address) (*uint256.Int, error)
	UpdateMerkleRoot(ctx context.Context, caller common.Address, root common.Hash) error
	UpdateExpirationTimestamp(ctx context.Context, caller common.Address, timestamp uint64) error
}

// Option configures the Airdrop handler
type Option func(*Airdrop)

// WithEventsFinder enables the journal listing route
func WithEventsFinder(finder airdrop.EventsFinder) Option {
	return func(h *Airdrop) {
		h.finder = finder
	}
}

// WithMetrics records operation outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Airdrop) {
		h.metrics = m
	}
}

// WithRateLimiter limits mutating routes per caller
func WithRateLimiter(rl *RateLimiter) Option {
	return func(h *Airdrop) {
		h.limiter = rl
	}
}

// WithLogger sets the logger used for post-commit warnings
func WithLogger(l *slog.Logger) Option {
	return func(h *Airdrop) {
		h.logger = l
	}
}

type Airdrop struct {
	dist    Distribution
	finder  airdrop.EventsFinder
	metrics *metrics.Metrics
	limiter *RateLimiter
	logger  *slog.Logger
}

func NewAirdrop(dist Distribution, opts ...Option) *Airdrop {
	h := &Airdrop{
		dist:   dist,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Airdrop) AddRoutes(m *http.ServeMux) {
	m.Handle(GetDistributionRoute, httpkit.HandlerFunc(h.GetDistribution))
	m.Handle(GetClaimStatusRoute, httpkit.HandlerFunc(h.GetClaimStatus))

	m.Handle(DepositRoute, h.limited(httpkit.HandlerFunc(h.Deposit)))
	m.Handle(ClaimRoute, h.limited(httpkit.HandlerFunc(h.Claim)))
	m.Handle(ClaimAndTransferRoute, h.limited(httpkit.HandlerFunc(h.ClaimAndTransfer)))
	m.Handle(ClaimForRoute, h.limited(httpkit.HandlerFunc(h.ClaimFor)))
	m.Handle(RetrieveRoute, h.limited(httpkit.HandlerFunc(h.Retrieve)))
	m.Handle(UpdateMerkleRootRoute, h.limited(httpkit.HandlerFunc(h.UpdateMerkleRoot)))
	m.Handle(UpdateExpirationRoute, h.limited(httpkit.HandlerFunc(h.UpdateExpiration)))

	if h.finder != nil {
		m.Handle(GetEventsRoute, httpkit.HandlerFunc(h.GetEvents))
	}
}

func (h *Airdrop) GetDistribution(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	pool, err := h.dist.PoolBalance(r.Context())
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrQueryFailed, err)))
	}

	resp := bind.DistributionResponse(h.dist.Address(), h.dist.Config(), h.dist.Expired(), pool)
	return httpkit.JSON(resp)
}

func (h *Airdrop) GetClaimStatus(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	account, err := bind.Address(r.PathValue("address"))
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	claimed, err := h.dist.IsClaimed(r.Context(), account)
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrQueryFailed, err)))
	}

	return httpkit.JSON(api.ClaimStatusResponse{Account: account.Hex(), Claimed: claimed})
}

func (h *Airdrop) Deposit(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	started := time.Now()

	req, err := bind.DepositRequest(r)
	if err != nil {
		return h.rejected(r.Context(), OpDeposit, started, err)
	}

	err = h.dist.Deposit(r.Context(), req.Caller, req.Amount)
	return h.respond(r.Context(), OpDeposit, started, err, api.Receipt{
		Operation: OpDeposit,
		Account:   req.Caller.Hex(),
		Amount:    req.Amount.Dec(),
	})
}

func (h *Airdrop) Claim(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	started := time.Now()

	req, err := bind.ClaimRequest(r)
	if err != nil {
		return h.rejected(r.Context(), OpClaim, started, err)
	}

	err = h.dist.Claim(r.Context(), req.Caller, req.Amount, req.Proof)
	return h.respond(r.Context(), OpClaim, started, err, claimReceipt(OpClaim, req.Caller, req.Caller, req.Amount))
}

func (h *Airdrop) ClaimAndTransfer(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	started := time.Now()

	req, err := bind.ClaimAndTransferRequest(r)
	if err != nil {
		return h.rejected(r.Context(), OpClaimAndTransfer, started, err)
	}

	err = h.dist.ClaimAndTransfer(r.Context(), req.Caller, req.Account, req.Amount, req.Proof)
	return h.respond(r.Context(), OpClaimAndTransfer, started, err, claimReceipt(OpClaimAndTransfer, req.Caller, req.Account, req.Amount))
}

func (h *Airdrop) ClaimFor(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	started := time.Now()

	req, err := bind.ClaimForRequest(r)
	if err != nil {
		return h.rejected(r.Context(), OpClaimFor, started, err)
	}

	err = h.dist.ClaimAndSendToClaimee(r.Context(), req.Caller, req.Account, req.Amount, req.Proof)
	return h.respond(r.Context(), OpClaimFor, started, err, claimReceipt(OpClaimFor, req.Account, req.Account, req.Amount))
}

func (h *Airdrop) Retrieve(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	started := time.Now()

	caller, err := bind.Caller(r)
	if err != nil {
		return h.rejected(r.Context(), OpRetrieve, started, err)
	}

	swept, err := h.dist.RetrieveUnclaimedTokens(r.Context(), caller)
	receipt := api.Receipt{Operation: OpRetrieve, Destination: caller.Hex()}
	if swept != nil {
		receipt.Amount = swept.Dec()
	}
	return h.respond(r.Context(), OpRetrieve, started, err, receipt)
}

func (h *Airdrop) UpdateMerkleRoot(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	started := time.Now()

	caller, root, err := bind.UpdateMerkleRootRequest(r)
	if err != nil {
		return h.rejected(r.Context(), OpUpdateMerkleRoot, started, err)
	}

	err = h.dist.UpdateMerkleRoot(r.Context(), caller, root)
	return h.respond(r.Context(), OpUpdateMerkleRoot, started, err, api.Receipt{Operation: OpUpdateMerkleRoot, Account: caller.Hex()})
}

func (h *Airdrop) UpdateExpiration(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	started := time.Now()

	caller, exp, err := bind.UpdateExpirationRequest(r)
	if err != nil {
		return h.rejected(r.Context(), OpUpdateExpiration, started, err)
	}

	err = h.dist.UpdateExpirationTimestamp(r.Context(), caller, exp)
	return h.respond(r.Context(), OpUpdateExpiration, started, err, api.Receipt{Operation: OpUpdateExpiration, Account: caller.Hex()})
}

func (h *Airdrop) GetEvents(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.GetEventsRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	criteria, err := bind.EventsCriteria(req)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	page, err := h.finder.FindEvents(r.Context(), criteria)
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrQueryFailed, err)))
	}

	if linkHeader := buildPaginationLinks(page, r.URL); linkHeader != "" {
		w.Header().Set("Link", linkHeader)
	}

	return httpkit.JSON(bind.GetEventsResponse(page.Events))
}

// respond maps an operation outcome to a response.
// A journal failure happens after commit, so the operation is still acknowledged.
func (h *Airdrop) respond(ctx context.Context, op string, started time.Time, err error, receipt api.Receipt) http.HandlerFunc {
	switch {
	case err == nil:
		receipt.Journaled = true
	case errors.Is(err, airdrop.ErrJournalFailed):
		h.logger.WarnContext(ctx, "operation committed without journal entry",
			slog.String("operation", op), slog.String("error", err.Error()))
	default:
		apiErr := api.Wrap(err)
		h.observe(ctx, op, metrics.StatusFromCode(apiErr.HTTPCode()), started)
		return httpkit.JsonError(apiErr)
	}

	h.observe(ctx, op, metrics.StatusSuccess, started)
	return httpkit.JSON(receipt)
}

// rejected answers a request that failed binding
func (h *Airdrop) rejected(ctx context.Context, op string, started time.Time, err error) http.HandlerFunc {
	h.observe(ctx, op, metrics.StatusRejected, started)
	return httpkit.JsonError(api.BadRequest(err))
}

// observe labels the request log line and the operation metrics with the outcome
func (h *Airdrop) observe(ctx context.Context, op string, status metrics.Status, started time.Time) {
	logger.Annotate(ctx, slog.String("operation", op), slog.String("outcome", string(status)))
	if h.metrics != nil {
		h.metrics.ObserveOperation(op, status, started)
	}
}

func (h *Airdrop) limited(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}

	var onLimited func()
	if h.metrics != nil {
		onLimited = h.metrics.RateLimited.Inc
	}
	return RateLimitMiddleware(h.limiter, onLimited)(next)
}

func claimReceipt(op string, account, destination common.Address, amount *uint256.Int) api.Receipt {
	return api.Receipt{
		Operation:   op,
		Account:     account.Hex(),
		Destination: destination.Hex(),
		Amount:      amount.Dec(),
	}
}

// buildPaginationLinks creates GitHub-style Link header for pagination navigation
func buildPaginationLinks(page *airdrop.EventsPage, baseURL *url.URL) string {
	var links []string

	u := *baseURL
	query := u.Query()

	if page.HasPrevious() {
		query.Set("page", fmt.Sprintf("%d", page.Number-1))
		query.Set("per_page", fmt.Sprintf("%d", page.Size))
		u.RawQuery = query.Encode()
		links = append(links, fmt.Sprintf(`<%s>; rel="prev"`, u.String()))
	}

	if page.HasNext() {
		query.Set("page", fmt.Sprintf("%d", page.Number+1))
		query.Set("per_page", fmt.Sprintf("%d", page.Size))
		u.RawQuery = query.Encode()
		links = append(links, fmt.Sprintf(`<%s>; rel="next"`, u.String()))
	}

	return strings.Join(links, ", ")
}
