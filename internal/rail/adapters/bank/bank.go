package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	raildomain "github.com/paygrid/disburse/internal/rail/domain"
)

const defaultTimeout = 30 * time.Second

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "bank"
}

func (f *Factory) NewExecutor(cfg raildomain.ExecutorConfig) (raildomain.Executor, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, raildomain.ErrInvalidConfig
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Executor{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Executor submits EFT instructions to the bank gateway. Every call is
// bounded by the client timeout; a timed-out transfer is reported as
// ErrExecutionTimeout so the caller releases the reserved funds
// instead of leaving them pending.
type Executor struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func (e *Executor) Provider() string { return "bank" }

type transferRequest struct {
	Reference       string `json:"reference"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	AccountNumber   string `json:"account_number"`
	BranchCode      string `json:"branch_code"`
	BeneficiaryName string `json:"beneficiary_name"`
}

type transferResponse struct {
	Status      string `json:"status"`
	ProviderRef string `json:"provider_ref"`
	Message     string `json:"message"`
}

func (e *Executor) Execute(ctx context.Context, req raildomain.ExecutionRequest) (raildomain.ExecutionResult, error) {
	payload, err := json.Marshal(transferRequest{
		Reference:       req.Reference,
		AmountCents:     req.AmountCents,
		Currency:        req.Currency,
		AccountNumber:   req.BankAccount,
		BranchCode:      req.BankCode,
		BeneficiaryName: req.BeneficiaryName,
	})
	if err != nil {
		return raildomain.ExecutionResult{}, raildomain.ErrExecutionFailed
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/transfers", strings.TrimRight(e.endpoint, "/")),
		bytes.NewReader(payload))
	if err != nil {
		return raildomain.ExecutionResult{}, raildomain.ErrExecutionFailed
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.Reference)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return raildomain.ExecutionResult{}, raildomain.ErrExecutionTimeout
		}
		return raildomain.ExecutionResult{}, raildomain.ErrExecutionFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raildomain.ExecutionResult{}, raildomain.ErrExecutionFailed
	}

	var out transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return raildomain.ExecutionResult{}, raildomain.ErrExecutionFailed
	}
	if !strings.EqualFold(out.Status, "accepted") && !strings.EqualFold(out.Status, "completed") {
		return raildomain.ExecutionResult{}, raildomain.ErrExecutionFailed
	}

	return raildomain.ExecutionResult{ProviderRef: out.ProviderRef}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
