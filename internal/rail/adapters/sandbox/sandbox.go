package sandbox

import (
	"context"
	"fmt"
	"strings"

	raildomain "github.com/paygrid/disburse/internal/rail/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "sandbox"
}

func (f *Factory) NewExecutor(raildomain.ExecutorConfig) (raildomain.Executor, error) {
	return &Executor{}, nil
}

// Executor accepts every transfer without touching a network. Transfers
// to account number 0000000000 fail, so failure paths stay exercisable
// in local environments.
type Executor struct{}

func (e *Executor) Provider() string { return "sandbox" }

func (e *Executor) Execute(ctx context.Context, req raildomain.ExecutionRequest) (raildomain.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return raildomain.ExecutionResult{}, raildomain.ErrExecutionTimeout
	}
	if strings.TrimSpace(req.BankAccount) == "0000000000" {
		return raildomain.ExecutionResult{}, raildomain.ErrExecutionFailed
	}
	return raildomain.ExecutionResult{ProviderRef: fmt.Sprintf("sandbox-%s", req.Reference)}, nil
}
