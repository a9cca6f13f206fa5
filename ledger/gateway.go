package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Gateway talks to a ledger bridge service over HTTP/JSON. The bridge holds
// the actual chain connection and only answers once a transition is final, so
// every call here is synchronous-until-final from the caller's perspective.
type Gateway struct {
	baseURL string
	hc      *http.Client
}

// NewGateway builds a gateway client. The timeout bounds every call; a timed
// out submission surfaces as ErrCall and is retryable by resubmission.
func NewGateway(baseURL string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

type createPoolRequest struct {
	Creator      string `json:"creator"`
	ContentHash  string `json:"content_hash"`
	MetadataHash string `json:"metadata_hash"`
	Price        int64  `json:"price"`
}

type poolResponse struct {
	ID                int64  `json:"id"`
	Creator           string `json:"creator"`
	ContentHash       string `json:"content_hash"`
	MetadataHash      string `json:"metadata_hash"`
	PricePerAccess    int64  `json:"price_per_access"`
	TotalContributors int    `json:"total_contributors"`
	Active            bool   `json:"active"`
}

type txResponse struct {
	PoolID int64  `json:"pool_id,omitempty"`
	TxHash string `json:"tx_hash"`
}

type amountResponse struct {
	Amount int64 `json:"amount"`
}

func (g *Gateway) CreatePool(ctx context.Context, creator, contentHash, metadataHash string, price int64) (int64, string, error) {
	var out txResponse
	err := g.call(ctx, http.MethodPost, "/pools", createPoolRequest{
		Creator:      creator,
		ContentHash:  contentHash,
		MetadataHash: metadataHash,
		Price:        price,
	}, &out)
	if err != nil {
		return 0, "", err
	}
	return out.PoolID, out.TxHash, nil
}

func (g *Gateway) GetPool(ctx context.Context, poolID int64) (PoolState, error) {
	var out poolResponse
	if err := g.call(ctx, http.MethodGet, fmt.Sprintf("/pools/%d", poolID), nil, &out); err != nil {
		return PoolState{}, err
	}
	return PoolState{
		ID:                out.ID,
		Creator:           out.Creator,
		ContentHash:       out.ContentHash,
		MetadataHash:      out.MetadataHash,
		PricePerAccess:    out.PricePerAccess,
		TotalContributors: out.TotalContributors,
		Active:            out.Active,
	}, nil
}

func (g *Gateway) Purchase(ctx context.Context, poolID int64, buyer string) (string, error) {
	return g.txCall(ctx, fmt.Sprintf("/pools/%d/purchase", poolID), map[string]any{"buyer": buyer})
}

func (g *Gateway) Stake(ctx context.Context, poolID int64, contributor string, amount int64) (string, error) {
	return g.txCall(ctx, fmt.Sprintf("/pools/%d/stake", poolID), map[string]any{
		"contributor": contributor,
		"amount":      amount,
	})
}

func (g *Gateway) AcceptStake(ctx context.Context, poolID int64, caller, contributor string) (string, error) {
	return g.txCall(ctx, fmt.Sprintf("/pools/%d/stake/accept", poolID), map[string]any{
		"caller":      caller,
		"contributor": contributor,
	})
}

func (g *Gateway) RejectStake(ctx context.Context, poolID int64, caller, contributor string) (string, error) {
	return g.txCall(ctx, fmt.Sprintf("/pools/%d/stake/reject", poolID), map[string]any{
		"caller":      caller,
		"contributor": contributor,
	})
}

func (g *Gateway) WithdrawStake(ctx context.Context, poolID int64, contributor string) (string, error) {
	return g.txCall(ctx, fmt.Sprintf("/pools/%d/stake/withdraw", poolID), map[string]any{
		"contributor": contributor,
	})
}

func (g *Gateway) PendingStake(ctx context.Context, poolID int64, contributor string) (int64, error) {
	return g.amountCall(ctx, fmt.Sprintf("/pools/%d/stake/%s/pending", poolID, contributor))
}

func (g *Gateway) AcceptedStake(ctx context.Context, poolID int64, contributor string) (int64, error) {
	return g.amountCall(ctx, fmt.Sprintf("/pools/%d/stake/%s/accepted", poolID, contributor))
}

func (g *Gateway) Contributors(ctx context.Context, poolID int64) ([]string, error) {
	var out struct {
		Contributors []string `json:"contributors"`
	}
	if err := g.call(ctx, http.MethodGet, fmt.Sprintf("/pools/%d/contributors", poolID), nil, &out); err != nil {
		return nil, err
	}
	return out.Contributors, nil
}

func (g *Gateway) PendingRoyalty(ctx context.Context, address string) (int64, error) {
	return g.amountCall(ctx, "/royalties/"+address)
}

func (g *Gateway) Claim(ctx context.Context, address string) (string, error) {
	return g.txCall(ctx, "/royalties/"+address+"/claim", nil)
}

func (g *Gateway) BalanceOf(ctx context.Context, address string) (int64, error) {
	return g.amountCall(ctx, "/balances/"+address)
}

func (g *Gateway) Allowance(ctx context.Context, owner string) (int64, error) {
	return g.amountCall(ctx, "/allowances/"+owner)
}

func (g *Gateway) Approve(ctx context.Context, owner string, amount int64) (string, error) {
	return g.txCall(ctx, "/allowances/"+owner, map[string]any{"amount": amount})
}

func (g *Gateway) txCall(ctx context.Context, path string, body any) (string, error) {
	var out txResponse
	if err := g.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	return out.TxHash, nil
}

func (g *Gateway) amountCall(ctx context.Context, path string) (int64, error) {
	var out amountResponse
	if err := g.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Amount, nil
}

type gatewayError struct {
	Error string `json:"error"`
}

// call performs one HTTP round trip and maps failures onto the adapter's
// sentinel errors so callers never see transport details.
func (g *Gateway) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrCall, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrCall, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCall, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var ge gatewayError
		_ = json.NewDecoder(resp.Body).Decode(&ge)
		if mapped := mapGatewayError(resp.StatusCode, ge.Error); mapped != nil {
			return mapped
		}
		return fmt.Errorf("%w: %s %s: status %d %s", ErrCall, method, path, resp.StatusCode, ge.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrCall, err)
	}
	return nil
}

// mapGatewayError translates the bridge's error codes back into sentinels.
func mapGatewayError(status int, code string) error {
	switch code {
	case "pool_not_found":
		return ErrPoolNotFound
	case "pool_inactive":
		return ErrPoolInactive
	case "insufficient_balance":
		return ErrInsufficientBalance
	case "insufficient_allowance":
		return ErrInsufficientAllowance
	case "stake_pending":
		return ErrStakePending
	case "no_pending_stake":
		return ErrNoPendingStake
	case "not_creator":
		return ErrNotCreator
	}
	if status == http.StatusNotFound {
		return ErrPoolNotFound
	}
	return nil
}
