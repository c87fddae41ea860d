package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	adjustmentdomain "github.com/paygrid/disburse/internal/adjustment/domain"
	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	"github.com/paygrid/disburse/internal/authorization"
	businessdomain "github.com/paygrid/disburse/internal/business/domain"
	"github.com/paygrid/disburse/internal/config"
	employeedomain "github.com/paygrid/disburse/internal/employee/domain"
	escrowdomain "github.com/paygrid/disburse/internal/escrow/domain"
	jobdomain "github.com/paygrid/disburse/internal/job/domain"
	scheduledomain "github.com/paygrid/disburse/internal/schedule/domain"
	taxdomain "github.com/paygrid/disburse/internal/tax/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogging(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	businessSvc   businessdomain.Service
	employeeSvc   employeedomain.Service
	scheduleSvc   scheduledomain.Service
	adjustmentSvc adjustmentdomain.Service
	escrowSvc     escrowdomain.Service
	taxSvc        taxdomain.Service
	auditSvc      auditdomain.Service
	authzSvc      authorization.Service
	jobRepo       jobdomain.Repository
}

type Params struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	BusinessSvc   businessdomain.Service
	EmployeeSvc   employeedomain.Service
	ScheduleSvc   scheduledomain.Service
	AdjustmentSvc adjustmentdomain.Service
	EscrowSvc     escrowdomain.Service
	TaxSvc        taxdomain.Service
	AuditSvc      auditdomain.Service
	AuthzSvc      authorization.Service
	JobRepo       jobdomain.Repository
}

func NewServer(p Params) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("server"),
		genID:         p.GenID,
		businessSvc:   p.BusinessSvc,
		employeeSvc:   p.EmployeeSvc,
		scheduleSvc:   p.ScheduleSvc,
		adjustmentSvc: p.AdjustmentSvc,
		escrowSvc:     p.EscrowSvc,
		taxSvc:        p.TaxSvc,
		auditSvc:      p.AuditSvc,
		authzSvc:      p.AuthzSvc,
		jobRepo:       p.JobRepo,
	}

	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// Business bootstrap runs outside the tenant scope: there is no
	// business header to present yet.
	v1.POST("/businesses", s.CreateBusiness)
	v1.GET("/businesses/:id", s.GetBusinessByID)

	api := v1.Group("", s.BusinessRequired())

	// -------- Schedules --------
	api.GET("/schedules", s.authorizeAction(authorization.ObjectSchedule, authorization.ActionScheduleView), s.ListSchedules)
	api.POST("/schedules", s.authorizeAction(authorization.ObjectSchedule, authorization.ActionScheduleCreate), s.CreateSchedule)
	api.GET("/schedules/:id", s.authorizeAction(authorization.ObjectSchedule, authorization.ActionScheduleView), s.GetScheduleByID)
	api.PATCH("/schedules/:id", s.authorizeAction(authorization.ObjectSchedule, authorization.ActionScheduleUpdate), s.UpdateSchedule)
	api.POST("/schedules/:id/pause", s.authorizeAction(authorization.ObjectSchedule, authorization.ActionSchedulePause), s.PauseSchedule)
	api.POST("/schedules/:id/resume", s.authorizeAction(authorization.ObjectSchedule, authorization.ActionScheduleResume), s.ResumeSchedule)
	api.POST("/schedules/:id/cancel", s.authorizeAction(authorization.ObjectSchedule, authorization.ActionScheduleCancel), s.CancelSchedule)
	api.GET("/schedules/:id/pay-period", s.authorizeAction(authorization.ObjectSchedule, authorization.ActionScheduleView), s.PreviewPayPeriod)

	// -------- Jobs --------
	api.GET("/jobs", s.authorizeAction(authorization.ObjectJob, authorization.ActionJobView), s.ListJobs)

	// -------- Adjustments --------
	api.GET("/adjustments", s.authorizeAction(authorization.ObjectAdjustment, authorization.ActionAdjustmentView), s.ListAdjustments)
	api.POST("/adjustments", s.authorizeAction(authorization.ObjectAdjustment, authorization.ActionAdjustmentCreate), s.CreateAdjustment)
	api.GET("/adjustments/:id", s.authorizeAction(authorization.ObjectAdjustment, authorization.ActionAdjustmentView), s.GetAdjustmentByID)
	api.PATCH("/adjustments/:id", s.authorizeAction(authorization.ObjectAdjustment, authorization.ActionAdjustmentUpdate), s.UpdateAdjustment)
	api.DELETE("/adjustments/:id", s.authorizeAction(authorization.ObjectAdjustment, authorization.ActionAdjustmentDelete), s.DeleteAdjustment)
	api.POST("/adjustments/:id/temporary-change", s.authorizeAction(authorization.ObjectAdjustment, authorization.ActionAdjustmentUpdate), s.TemporarilyChangeAdjustment)

	// -------- Escrow --------
	api.GET("/deposits", s.authorizeAction(authorization.ObjectEscrow, authorization.ActionEscrowView), s.ListDeposits)
	api.POST("/deposits", s.authorizeAction(authorization.ObjectEscrow, authorization.ActionEscrowCreate), s.CreateDeposit)
	api.POST("/deposits/:id/confirm", s.authorizeAction(authorization.ObjectEscrow, authorization.ActionEscrowConfirm), s.ConfirmDeposit)
	api.POST("/deposits/:id/reject", s.authorizeAction(authorization.ObjectEscrow, authorization.ActionEscrowReject), s.RejectDeposit)
	api.GET("/balance", s.authorizeAction(authorization.ObjectEscrow, authorization.ActionEscrowView), s.AvailableBalance)

	// -------- Employees --------
	api.GET("/employees", s.authorizeAction(authorization.ObjectEmployee, authorization.ActionEmployeeView), s.ListEmployees)
	api.POST("/employees", s.authorizeAction(authorization.ObjectEmployee, authorization.ActionEmployeeCreate), s.CreateEmployee)
	api.GET("/employees/:id", s.authorizeAction(authorization.ObjectEmployee, authorization.ActionEmployeeView), s.GetEmployeeByID)
	api.PATCH("/employees/:id", s.authorizeAction(authorization.ObjectEmployee, authorization.ActionEmployeeUpdate), s.UpdateEmployee)
	api.POST("/employees/:id/terminate", s.authorizeAction(authorization.ObjectEmployee, authorization.ActionEmployeeTerminate), s.TerminateEmployee)

	// -------- Audit logs --------
	api.GET("/audit-logs", s.authorizeAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)

	// -------- Tax tables --------
	api.GET("/tax-tables", s.authorizeAction(authorization.ObjectTaxTable, authorization.ActionTaxTableView), s.ListTaxTables)
	api.POST("/tax-tables", s.authorizeAction(authorization.ObjectTaxTable, authorization.ActionTaxTableManage), s.CreateTaxTable)
	api.POST("/tax-tables/:version/activate", s.authorizeAction(authorization.ObjectTaxTable, authorization.ActionTaxTableManage), s.ActivateTaxTable)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
