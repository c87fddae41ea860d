package authorization

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

const (
	ObjectSchedule   = "schedule"
	ObjectAdjustment = "adjustment"
	ObjectEscrow     = "escrow_deposit"
	ObjectJob        = "job"
	ObjectEmployee   = "employee"
	ObjectAuditLog   = "audit_log"
	ObjectTaxTable   = "tax_table"
)

const (
	ActionScheduleView   = "schedule.view"
	ActionScheduleCreate = "schedule.create"
	ActionScheduleUpdate = "schedule.update"
	ActionSchedulePause  = "schedule.pause"
	ActionScheduleResume = "schedule.resume"
	ActionScheduleCancel = "schedule.cancel"

	ActionAdjustmentView   = "adjustment.view"
	ActionAdjustmentCreate = "adjustment.create"
	ActionAdjustmentUpdate = "adjustment.update"
	ActionAdjustmentDelete = "adjustment.delete"

	ActionEscrowView    = "escrow_deposit.view"
	ActionEscrowCreate  = "escrow_deposit.create"
	ActionEscrowConfirm = "escrow_deposit.confirm"
	ActionEscrowReject  = "escrow_deposit.reject"

	ActionJobView     = "job.view"
	ActionJobDispatch = "job.dispatch"
	ActionJobRecover  = "job.recover"

	ActionEmployeeView      = "employee.view"
	ActionEmployeeCreate    = "employee.create"
	ActionEmployeeUpdate    = "employee.update"
	ActionEmployeeTerminate = "employee.terminate"

	ActionAuditLogView = "audit_log.view"

	ActionTaxTableView   = "tax_table.view"
	ActionTaxTableManage = "tax_table.manage"
)

var (
	ErrInvalidActor    = errors.New("invalid_actor")
	ErrInvalidBusiness = errors.New("invalid_business")
	ErrInvalidObject   = errors.New("invalid_object")
	ErrInvalidAction   = errors.New("invalid_action")
	ErrForbidden       = errors.New("forbidden")
)

// Service answers "may this actor perform this action on this object
// within this business". Actors are "system", or "user:<id>".
type Service interface {
	Authorize(ctx context.Context, actor string, businessID string, object string, action string) error
}

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
