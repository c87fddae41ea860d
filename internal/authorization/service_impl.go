package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, businessID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return ErrInvalidBusiness
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := resolveActor(actor)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, businessID, object, action)
		return err
	}

	domain := fmt.Sprintf("business:%s", businessID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, businessID, object, action)
		return ErrForbidden
	}
	return nil
}

// resolveActor maps the actor string to a casbin subject and role.
// Businesses are single-owner tenants, so authenticated users carry
// the owner role within their own business domain.
func resolveActor(actor string) (string, string, string, *string, error) {
	if actor == "system" {
		return actor, "role:system", "system", nil, nil
	}
	if strings.HasPrefix(actor, "user:") {
		raw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(raw)
		if err != nil || userID == 0 {
			return "", "", "user", nil, ErrInvalidActor
		}
		idStr := userID.String()
		return actor, "role:owner", "user", &idStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, businessID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsed, err := snowflake.ParseString(businessID)
	if err != nil || parsed == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		BusinessID: &parsed,
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     "authorization.denied",
		TargetType: "authorization",
		TargetID:   &targetID,
		Metadata: map[string]any{
			"object": object,
			"action": action,
		},
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Owner: the full tenant surface.
		{"role:owner", ObjectSchedule, ActionScheduleView},
		{"role:owner", ObjectSchedule, ActionScheduleCreate},
		{"role:owner", ObjectSchedule, ActionScheduleUpdate},
		{"role:owner", ObjectSchedule, ActionSchedulePause},
		{"role:owner", ObjectSchedule, ActionScheduleResume},
		{"role:owner", ObjectSchedule, ActionScheduleCancel},
		{"role:owner", ObjectAdjustment, ActionAdjustmentView},
		{"role:owner", ObjectAdjustment, ActionAdjustmentCreate},
		{"role:owner", ObjectAdjustment, ActionAdjustmentUpdate},
		{"role:owner", ObjectAdjustment, ActionAdjustmentDelete},
		{"role:owner", ObjectEscrow, ActionEscrowView},
		{"role:owner", ObjectEscrow, ActionEscrowCreate},
		{"role:owner", ObjectEmployee, ActionEmployeeView},
		{"role:owner", ObjectEmployee, ActionEmployeeCreate},
		{"role:owner", ObjectEmployee, ActionEmployeeUpdate},
		{"role:owner", ObjectEmployee, ActionEmployeeTerminate},
		{"role:owner", ObjectJob, ActionJobView},
		{"role:owner", ObjectAuditLog, ActionAuditLogView},
		{"role:owner", ObjectTaxTable, ActionTaxTableView},

		// Member: read-only.
		{"role:member", ObjectSchedule, ActionScheduleView},
		{"role:member", ObjectAdjustment, ActionAdjustmentView},
		{"role:member", ObjectEscrow, ActionEscrowView},
		{"role:member", ObjectJob, ActionJobView},

		// System: the dispatcher and bank-confirmation paths.
		{"role:system", ObjectJob, ActionJobDispatch},
		{"role:system", ObjectJob, ActionJobRecover},
		{"role:system", ObjectJob, ActionJobView},
		{"role:system", ObjectSchedule, ActionScheduleView},
		{"role:system", ObjectEscrow, ActionEscrowConfirm},
		{"role:system", ObjectEscrow, ActionEscrowReject},
		{"role:system", ObjectTaxTable, ActionTaxTableManage},
		{"role:system", ObjectTaxTable, ActionTaxTableView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}
	return nil
}
