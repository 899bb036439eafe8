package bind

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/screwyprof/airdrop/airdrop"
	"github.com/screwyprof/airdrop/pkg/httpkit"
	"github.com/screwyprof/airdrop/web/api"
)

// Sentinel errors for request binding
var (
	ErrMissingCaller  = errors.New("missing caller address")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidProof   = errors.New("invalid proof")
	ErrInvalidHash    = errors.New("invalid hash")
	ErrInvalidPage    = errors.New("invalid page parameter")
	ErrInvalidPerPage = errors.New("invalid per_page parameter")
	ErrInvalidKind    = errors.New("invalid kind parameter")

	ErrNotHex          = errors.New("must be 0x-prefixed hex")
	ErrZeroAddress     = errors.New("must not be the zero address")
	ErrNotDecimal      = errors.New("must be a non-negative decimal integer")
	ErrPageNotNumeric  = errors.New("page must be numeric")
	ErrPageNotPositive = errors.New("page must be positive")

	ErrPerPageNotNumeric  = errors.New("per_page must be numeric")
	ErrPerPageNotPositive = errors.New("per_page must be positive")
)

// Deposit is a bound POST /airdrop/deposit request
type Deposit struct {
	Caller common.Address
	Amount *uint256.Int
}

// Claim is a bound claim request.
// Account is the caller for a plain claim, the destination for claim-and-transfer
// and the beneficiary for claim-for.
type Claim struct {
	Caller  common.Address
	Account common.Address
	Amount  *uint256.Int
	Proof   []common.Hash
}

// Caller reads the caller address set by the gateway
func Caller(r *http.Request) (common.Address, error) {
	raw := strings.TrimSpace(r.Header.Get(httpkit.CallerHeader))
	if raw == "" {
		return common.Address{}, ErrMissingCaller
	}
	return Address(raw)
}

// Address parses a 0x-prefixed 20-byte hex address
func Address(raw string) (common.Address, error) {
	if !has0x(raw) || !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %q %w", ErrInvalidAddress, raw, ErrNotHex)
	}
	return common.HexToAddress(raw), nil
}

// Recipient parses an address that receives tokens
func Recipient(raw string) (common.Address, error) {
	addr, err := Address(raw)
	if err != nil {
		return common.Address{}, err
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %q %w", ErrInvalidAddress, raw, ErrZeroAddress)
	}
	return addr, nil
}

// Amount parses a decimal token amount
func Amount(raw string) (*uint256.Int, error) {
	if raw == "" || strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-") {
		return nil, fmt.Errorf("%w: %q %w", ErrInvalidAmount, raw, ErrNotDecimal)
	}
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q %w", ErrInvalidAmount, raw, ErrNotDecimal)
	}
	return amount, nil
}

// Hash parses a 0x-prefixed 32-byte hex hash
func Hash(raw string) (common.Hash, error) {
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q must be 32 bytes of 0x-prefixed hex", ErrInvalidHash, raw)
	}
	return common.BytesToHash(b), nil
}

// Proof parses the sibling hashes of a Merkle proof; an empty proof is valid
func Proof(raw []string) ([]common.Hash, error) {
	proof := make([]common.Hash, len(raw))
	for i, element := range raw {
		h, err := Hash(element)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %w", ErrInvalidProof, i, err)
		}
		proof[i] = h
	}
	return proof, nil
}

// DepositRequest binds POST /airdrop/deposit
func DepositRequest(r *http.Request) (Deposit, error) {
	caller, err := Caller(r)
	if err != nil {
		return Deposit{}, err
	}

	var req api.DepositRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return Deposit{}, err
	}

	amount, err := Amount(req.Amount)
	if err != nil {
		return Deposit{}, err
	}

	return Deposit{Caller: caller, Amount: amount}, nil
}

// ClaimRequest binds POST /airdrop/claim
func ClaimRequest(r *http.Request) (Claim, error) {
	var req api.ClaimRequest
	caller, err := decodeWithCaller(r, &req)
	if err != nil {
		return Claim{}, err
	}
	return claim(caller, caller, req.Amount, req.Proof)
}

// ClaimAndTransferRequest binds POST /airdrop/claim-and-transfer
func ClaimAndTransferRequest(r *http.Request) (Claim, error) {
	var req api.ClaimAndTransferRequest
	caller, err := decodeWithCaller(r, &req)
	if err != nil {
		return Claim{}, err
	}

	destination, err := Recipient(req.Destination)
	if err != nil {
		return Claim{}, err
	}
	return claim(caller, destination, req.Amount, req.Proof)
}

// ClaimForRequest binds POST /airdrop/claim-for
func ClaimForRequest(r *http.Request) (Claim, error) {
	var req api.ClaimForRequest
	caller, err := decodeWithCaller(r, &req)
	if err != nil {
		return Claim{}, err
	}

	beneficiary, err := Recipient(req.Beneficiary)
	if err != nil {
		return Claim{}, err
	}
	return claim(caller, beneficiary, req.Amount, req.Proof)
}

// UpdateMerkleRootRequest binds PUT /airdrop/merkle-root
func UpdateMerkleRootRequest(r *http.Request) (common.Address, common.Hash, error) {
	var req api.UpdateMerkleRootRequest
	caller, err := decodeWithCaller(r, &req)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}

	root, err := Hash(req.MerkleRoot)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	return caller, root, nil
}

// UpdateExpirationRequest binds PUT /airdrop/expiration
func UpdateExpirationRequest(r *http.Request) (common.Address, uint64, error) {
	var req api.UpdateExpirationRequest
	caller, err := decodeWithCaller(r, &req)
	if err != nil {
		return common.Address{}, 0, err
	}
	return caller, req.ExpirationTimestamp, nil
}

// GetEventsRequest binds HTTP request to EventsRequest with defaults
func GetEventsRequest(r *http.Request) (api.EventsRequest, error) {
	req := api.EventsRequest{
		Page:    airdrop.DefaultPage,
		PerPage: airdrop.DefaultPerPage,
	}

	query := r.URL.Query()

	if kind := query.Get("kind"); kind != "" {
		if _, err := airdrop.ParseKind(kind); err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidKind, err)
		}
		req.Kind = kind
	}

	if pageParam := query.Get("page"); pageParam != "" {
		page, err := parsePageNumber(pageParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidPage, err)
		}
		req.Page = page
	}

	if perPageParam := query.Get("per_page"); perPageParam != "" {
		perPage, err := parsePerPageLimit(perPageParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidPerPage, err)
		}
		req.PerPage = perPage
	}

	return req, nil
}

// EventsCriteria turns a bound request into domain criteria
func EventsCriteria(req api.EventsRequest) (airdrop.EventsCriteria, error) {
	size, err := airdrop.ParsePerPageFromUint64(req.PerPage)
	if err != nil {
		return airdrop.EventsCriteria{}, fmt.Errorf("%w: %w", ErrInvalidPerPage, err)
	}

	criteria := airdrop.EventsCriteria{
		Kind: req.Kind,
		Page: airdrop.ParsePageFromUint64(req.Page),
		Size: size,
	}
	if _, err := criteria.Offset(); err != nil {
		return airdrop.EventsCriteria{}, fmt.Errorf("%w: %w", ErrInvalidPage, err)
	}
	return criteria, nil
}

// DistributionResponse binds the distribution state to API response format
func DistributionResponse(address common.Address, cfg airdrop.Config, expired bool, pool *uint256.Int) api.DistributionResponse {
	return api.DistributionResponse{
		Address:             address.Hex(),
		Administrator:       cfg.Administrator.Hex(),
		Token:               cfg.Token.Hex(),
		MerkleRoot:          cfg.MerkleRoot.Hex(),
		ExpirationTimestamp: cfg.ExpirationTimestamp,
		Expired:             expired,
		PoolBalance:         pool.Dec(),
	}
}

// GetEventsResponse binds recorded events to API response format
func GetEventsResponse(events []airdrop.RecordedEvent) api.EventsResponse {
	data := make([]api.Event, len(events))
	for i, rec := range events {
		data[i] = eventResponse(rec)
	}
	return api.EventsResponse{Data: data}
}

func eventResponse(rec airdrop.RecordedEvent) api.Event {
	e := api.Event{
		ID:   rec.ID.String(),
		Seq:  rec.Seq,
		Kind: airdrop.KindOf(rec.Event),
	}

	switch ev := rec.Event.(type) {
	case airdrop.Deposited:
		e.Caller = ev.Depositor.Hex()
		e.Amount = ev.Amount.Dec()
		e.At = formatTime(ev.At)
	case airdrop.Claimed:
		e.Caller = ev.Caller.Hex()
		e.Destination = ev.Destination.Hex()
		e.Amount = ev.Amount.Dec()
		e.At = formatTime(ev.At)
	case airdrop.Retrieved:
		e.Destination = ev.Administrator.Hex()
		e.Amount = ev.Amount.Dec()
		e.At = formatTime(ev.At)
	case airdrop.MerkleRootUpdated:
		e.MerkleRoot = ev.Root.Hex()
		e.At = formatTime(ev.At)
	case airdrop.ExpirationUpdated:
		e.ExpirationTimestamp = ev.ExpirationTimestamp
		e.At = formatTime(ev.At)
	}
	return e
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func decodeWithCaller(r *http.Request, v any) (common.Address, error) {
	caller, err := Caller(r)
	if err != nil {
		return common.Address{}, err
	}
	if err := httpkit.DecodeJSON(r, v); err != nil {
		return common.Address{}, err
	}
	return caller, nil
}

func claim(caller, account common.Address, rawAmount string, rawProof []string) (Claim, error) {
	amount, err := Amount(rawAmount)
	if err != nil {
		return Claim{}, err
	}

	proof, err := Proof(rawProof)
	if err != nil {
		return Claim{}, err
	}

	return Claim{Caller: caller, Account: account, Amount: amount, Proof: proof}, nil
}

func has0x(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// parsePageNumber validates that the page parameter is a positive integer
func parsePageNumber(pageParam string) (uint64, error) {
	page, err := strconv.ParseUint(pageParam, 10, 64)
	if err != nil {
		return 0, ErrPageNotNumeric
	}

	if page == 0 {
		return 0, ErrPageNotPositive
	}

	return page, nil
}

// parsePerPageLimit validates that the per_page parameter is numeric and positive.
// The upper bound is a domain rule checked by EventsCriteria.
func parsePerPageLimit(perPageParam string) (uint64, error) {
	perPage, err := strconv.ParseUint(perPageParam, 10, 64)
	if err != nil {
		return 0, ErrPerPageNotNumeric
	}

	if perPage == 0 {
		return 0, ErrPerPageNotPositive
	}

	return perPage, nil
}
