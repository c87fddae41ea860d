package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	businessdomain "github.com/paygrid/disburse/internal/business/domain"
	"github.com/paygrid/disburse/internal/escrow/domain"
	"github.com/paygrid/disburse/internal/escrow/repository"
	jobdomain "github.com/paygrid/disburse/internal/job/domain"
	"github.com/paygrid/disburse/internal/tenantctx"
)

type stubBusinessSvc struct {
	business *businessdomain.Business
}

func (s *stubBusinessSvc) Create(ctx context.Context, req businessdomain.CreateBusinessRequest) (*businessdomain.Business, error) {
	return s.business, nil
}
func (s *stubBusinessSvc) GetByID(ctx context.Context, id snowflake.ID) (*businessdomain.Business, error) {
	return s.business, nil
}
func (s *stubBusinessSvc) RequireActive(ctx context.Context, id snowflake.ID) (*businessdomain.Business, error) {
	if s.business == nil || !s.business.CanPerformActions() {
		return nil, businessdomain.ErrBusinessInactive
	}
	return s.business, nil
}
func (s *stubBusinessSvc) UpdateStatus(ctx context.Context, id snowflake.ID, status businessdomain.BusinessStatus) (*businessdomain.Business, error) {
	return s.business, nil
}

type recordingAuditSvc struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAuditSvc) Record(ctx context.Context, entry auditdomain.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, entry.Action)
	return nil
}

func (a *recordingAuditSvc) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type escrowFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	svc      domain.Service
	ledger   domain.Ledger
	repo     domain.Repository
	audit    *recordingAuditSvc
	business *businessdomain.Business
	ctx      context.Context
}

func newEscrowFixture(t *testing.T) *escrowFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	// SQLite support hack: remove FOR UPDATE clauses
	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&businessdomain.Business{},
		&domain.EscrowDeposit{},
		&jobdomain.Job{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	now := time.Now().UTC()
	business := &businessdomain.Business{
		ID:        node.Generate(),
		Name:      "Karoo Logistics",
		Slug:      "karoo-logistics",
		Status:    businessdomain.BusinessStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(business).Error)

	repo := repository.Provide()
	audit := &recordingAuditSvc{}
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repo,
		Business: &stubBusinessSvc{business: business},
		Audit:    audit,
	})
	ledger := NewLedger(LedgerParams{Log: zap.NewNop(), Repo: repo})

	return &escrowFixture{
		db:       db,
		node:     node,
		svc:      svc,
		ledger:   ledger,
		repo:     repo,
		audit:    audit,
		business: business,
		ctx:      tenantctx.WithBusinessID(context.Background(), business.ID),
	}
}

func (f *escrowFixture) pendingJob(t *testing.T, amountCents int64) *jobdomain.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &jobdomain.Job{
		ID:          f.node.Generate(),
		BusinessID:  f.business.ID,
		ScheduleID:  f.node.Generate(),
		EmployeeID:  f.node.Generate(),
		PeriodStart: now.AddDate(0, -1, 0),
		PeriodEnd:   now,
		AmountCents: amountCents,
		Status:      jobdomain.JobStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, f.db.Create(job).Error)
	return job
}

func TestCreateDeposit_SplitsFee(t *testing.T) {
	f := newEscrowFixture(t)

	deposit, err := f.svc.CreateDeposit(f.ctx, domain.CreateDepositRequest{AmountCents: 10_000})
	require.NoError(t, err)

	assert.Equal(t, int64(10_000), deposit.AmountCents)
	assert.Equal(t, int64(150), deposit.FeeCents)
	assert.Equal(t, int64(9_850), deposit.AuthorizedCents)
	assert.Equal(t, "ZAR", deposit.Currency)
	assert.Equal(t, domain.DepositStatusPending, deposit.Status)
	assert.NotEmpty(t, deposit.Reference)

	// Pending deposits hold nothing.
	balance, err := f.svc.AvailableBalance(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	assert.Contains(t, f.audit.actions, "escrow.deposit_created")
}

func TestCreateDeposit_Validation(t *testing.T) {
	f := newEscrowFixture(t)

	_, err := f.svc.CreateDeposit(f.ctx, domain.CreateDepositRequest{AmountCents: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.CreateDeposit(f.ctx, domain.CreateDepositRequest{AmountCents: -500})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.CreateDeposit(f.ctx, domain.CreateDepositRequest{AmountCents: 1000, Currency: "RAND"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	_, err = f.svc.CreateDeposit(context.Background(), domain.CreateDepositRequest{AmountCents: 1000})
	assert.ErrorIs(t, err, domain.ErrInvalidBusiness)
}

func TestConfirmDeposit_MakesFundsAvailableOnce(t *testing.T) {
	f := newEscrowFixture(t)

	deposit, err := f.svc.CreateDeposit(f.ctx, domain.CreateDepositRequest{AmountCents: 100_000})
	require.NoError(t, err)

	confirmed, err := f.svc.ConfirmDeposit(f.ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositStatusCompleted, confirmed.Status)
	require.NotNil(t, confirmed.CompletedAt)

	balance, err := f.svc.AvailableBalance(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(98_500), balance)

	// The transition is terminal.
	_, err = f.svc.ConfirmDeposit(f.ctx, deposit.ID)
	assert.ErrorIs(t, err, domain.ErrDepositNotPending)
	_, err = f.svc.RejectDeposit(f.ctx, deposit.ID)
	assert.ErrorIs(t, err, domain.ErrDepositNotPending)
}

func TestRejectDeposit_NeverFunds(t *testing.T) {
	f := newEscrowFixture(t)

	deposit, err := f.svc.CreateDeposit(f.ctx, domain.CreateDepositRequest{AmountCents: 50_000})
	require.NoError(t, err)

	rejected, err := f.svc.RejectDeposit(f.ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositStatusRejected, rejected.Status)

	balance, err := f.svc.AvailableBalance(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestLedger_ReserveCommitRelease(t *testing.T) {
	f := newEscrowFixture(t)

	deposit, err := f.svc.CreateDeposit(f.ctx, domain.CreateDepositRequest{AmountCents: 100_000})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDeposit(f.ctx, deposit.ID)
	require.NoError(t, err)

	job := f.pendingJob(t, 40_000)

	var token string
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		token, err = f.ledger.Reserve(f.ctx, tx, f.business.ID, job.ID, job.AmountCents)
		return err
	}))
	require.NotEmpty(t, token)

	// Processing jobs hold their amount.
	balance, err := f.svc.AvailableBalance(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(58_500), balance)

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.ledger.Commit(f.ctx, tx, token)
	}))

	var reloaded jobdomain.Job
	require.NoError(t, f.db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, jobdomain.JobStatusSucceeded, reloaded.Status)
	require.NotNil(t, reloaded.ProcessedAt)

	// Succeeded jobs keep holding funds.
	balance, err = f.svc.AvailableBalance(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(58_500), balance)
}

func TestLedger_ReleaseReturnsFunds(t *testing.T) {
	f := newEscrowFixture(t)

	deposit, err := f.svc.CreateDeposit(f.ctx, domain.CreateDepositRequest{AmountCents: 100_000})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDeposit(f.ctx, deposit.ID)
	require.NoError(t, err)

	job := f.pendingJob(t, 40_000)

	var token string
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		token, err = f.ledger.Reserve(f.ctx, tx, f.business.ID, job.ID, job.AmountCents)
		return err
	}))

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.ledger.Release(f.ctx, tx, token, "rail_execution_failed")
	}))

	var reloaded jobdomain.Job
	require.NoError(t, f.db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, jobdomain.JobStatusFailed, reloaded.Status)
	require.NotNil(t, reloaded.FailureReason)
	assert.Equal(t, "rail_execution_failed", *reloaded.FailureReason)

	balance, err := f.svc.AvailableBalance(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(98_500), balance)
}

func TestLedger_ConservesMoneyUnderRandomInterleavings(t *testing.T) {
	f := newEscrowFixture(t)

	deposit, err := f.svc.CreateDeposit(f.ctx, domain.CreateDepositRequest{AmountCents: 1_000_000})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDeposit(f.ctx, deposit.ID)
	require.NoError(t, err)
	funded := deposit.AuthorizedCents

	rng := rand.New(rand.NewSource(42))
	type reservation struct {
		token  string
		amount int64
	}
	var open []reservation
	var committed, failed int64

	checkConservation := func() {
		var holds int64
		of := func(status jobdomain.JobStatus) int64 {
			var total int64
			require.NoError(t, f.db.Model(&jobdomain.Job{}).
				Where("business_id = ? AND status = ?", f.business.ID, status).
				Select("COALESCE(SUM(amount_cents), 0)").Scan(&total).Error)
			return total
		}
		holds = of(jobdomain.JobStatusProcessing) + of(jobdomain.JobStatusSucceeded)

		balance, err := f.svc.AvailableBalance(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, funded, balance+holds)
		assert.Equal(t, committed, of(jobdomain.JobStatusSucceeded))
		assert.Equal(t, failed, of(jobdomain.JobStatusFailed))
	}

	for step := 0; step < 60; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(open) == 0:
			amount := int64(rng.Intn(30_000) + 1)
			job := f.pendingJob(t, amount)
			err := f.db.Transaction(func(tx *gorm.DB) error {
				token, reserveErr := f.ledger.Reserve(f.ctx, tx, f.business.ID, job.ID, amount)
				if reserveErr != nil {
					return reserveErr
				}
				open = append(open, reservation{token: token, amount: amount})
				return nil
			})
			if err != nil {
				require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			}
		case op == 1:
			idx := rng.Intn(len(open))
			res := open[idx]
			require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
				return f.ledger.Commit(f.ctx, tx, res.token)
			}))
			committed += res.amount
			open = append(open[:idx], open[idx+1:]...)
		default:
			idx := rng.Intn(len(open))
			res := open[idx]
			require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
				return f.ledger.Release(f.ctx, tx, res.token, "rail_execution_failed")
			}))
			failed += res.amount
			open = append(open[:idx], open[idx+1:]...)
		}
		checkConservation()
	}
}

func TestLedger_InsufficientFunds(t *testing.T) {
	f := newEscrowFixture(t)

	deposit, err := f.svc.CreateDeposit(f.ctx, domain.CreateDepositRequest{AmountCents: 10_000})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDeposit(f.ctx, deposit.ID)
	require.NoError(t, err)

	job := f.pendingJob(t, 40_000)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, reserveErr := f.ledger.Reserve(f.ctx, tx, f.business.ID, job.ID, job.AmountCents)
		return reserveErr
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	var reloaded jobdomain.Job
	require.NoError(t, f.db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, jobdomain.JobStatusPending, reloaded.Status)
}
