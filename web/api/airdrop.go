package api

// DistributionResponse represents the API response format for GET /airdrop
type DistributionResponse struct {
	Address             string `json:"address"`
	Administrator       string `json:"administrator"`
	Token               string `json:"token"`
	MerkleRoot          string `json:"merkle_root"`
	ExpirationTimestamp uint64 `json:"expiration_timestamp"`
	Expired             bool   `json:"expired"`
	PoolBalance         string `json:"pool_balance"`
}

// ClaimStatusResponse represents the API response format for GET /airdrop/claims/{address}
type ClaimStatusResponse struct {
	Account string `json:"account"`
	Claimed bool   `json:"claimed"`
}

// DepositRequest is the body of POST /airdrop/deposit
type DepositRequest struct {
	Amount string `json:"amount"`
}

// ClaimRequest is the body of POST /airdrop/claim
type ClaimRequest struct {
	Amount string   `json:"amount"`
	Proof  []string `json:"proof"`
}

// ClaimAndTransferRequest is the body of POST /airdrop/claim-and-transfer
type ClaimAndTransferRequest struct {
	Destination string   `json:"destination"`
	Amount      string   `json:"amount"`
	Proof       []string `json:"proof"`
}

// ClaimForRequest is the body of POST /airdrop/claim-for
type ClaimForRequest struct {
	Beneficiary string   `json:"beneficiary"`
	Amount      string   `json:"amount"`
	Proof       []string `json:"proof"`
}

// UpdateMerkleRootRequest is the body of PUT /airdrop/merkle-root
type UpdateMerkleRootRequest struct {
	MerkleRoot string `json:"merkle_root"`
}

// UpdateExpirationRequest is the body of PUT /airdrop/expiration
type UpdateExpirationRequest struct {
	ExpirationTimestamp uint64 `json:"expiration_timestamp"`
}

// Receipt acknowledges a committed operation.
// Journaled is false when the event could not be recorded after commit.
type Receipt struct {
	Operation   string `json:"operation"`
	Account     string `json:"account,omitempty"`
	Destination string `json:"destination,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Journaled   bool   `json:"journaled"`
}

// EventsRequest represents the query parameters for GET /airdrop/events
type EventsRequest struct {
	Kind    string `query:"kind"`
	Page    uint64 `query:"page"`
	PerPage uint64 `query:"per_page"`
}

// Event represents a single journal event in the API response
type Event struct {
	ID                  string `json:"id"`
	Seq                 int64  `json:"seq"`
	Kind                string `json:"kind"`
	Caller              string `json:"caller,omitempty"`
	Destination         string `json:"destination,omitempty"`
	Amount              string `json:"amount,omitempty"`
	MerkleRoot          string `json:"merkle_root,omitempty"`
	ExpirationTimestamp uint64 `json:"expiration_timestamp,omitempty"`
	At                  string `json:"at"`
}

// EventsResponse represents the API response format for GET /airdrop/events
type EventsResponse struct {
	Data []Event `json:"data"`
}
