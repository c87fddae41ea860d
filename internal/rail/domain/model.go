package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrProviderNotFound = errors.New("rail_provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_rail_config")
	ErrExecutionFailed  = errors.New("rail_execution_failed")
	ErrExecutionTimeout = errors.New("rail_execution_timeout")
)

// ExecutionRequest is everything a rail needs to move one job's money
// to one recipient.
type ExecutionRequest struct {
	JobID           snowflake.ID `json:"job_id"`
	BusinessID      snowflake.ID `json:"business_id"`
	Reference       string       `json:"reference"`
	AmountCents     int64        `json:"amount_cents"`
	Currency        string       `json:"currency"`
	BankAccount     string       `json:"bank_account"`
	BankCode        string       `json:"bank_code"`
	BeneficiaryName string       `json:"beneficiary_name"`
}

type ExecutionResult struct {
	ProviderRef string `json:"provider_ref"`
}

// Executor is the opaque payment-rail dependency. Execute either
// succeeds or returns ErrExecutionFailed/ErrExecutionTimeout; it must
// respect the context deadline rather than block indefinitely.
type Executor interface {
	Provider() string
	Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

type ExecutorConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

type ExecutorFactory interface {
	Provider() string
	NewExecutor(cfg ExecutorConfig) (Executor, error)
}
