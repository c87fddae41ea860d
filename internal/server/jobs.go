package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	jobdomain "github.com/paygrid/disburse/internal/job/domain"
	"github.com/paygrid/disburse/internal/tenantctx"
)

type listJobsQuery struct {
	ScheduleID string `form:"schedule_id"`
	Status     string `form:"status"`
	PageSize   int    `form:"page_size,default=50"`
}

func (s *Server) ListJobs(c *gin.Context) {
	var query listJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	businessID, ok := tenantctx.BusinessIDFromContext(c.Request.Context())
	if !ok || businessID == 0 {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	filter := jobdomain.ListFilter{
		Status: jobdomain.JobStatus(strings.TrimSpace(query.Status)),
		Limit:  query.PageSize,
	}
	scheduleID, err := parseOptionalSnowflakeID(query.ScheduleID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if scheduleID != nil {
		filter.ScheduleID = *scheduleID
	}

	resp, err := s.jobRepo.List(c.Request.Context(), s.db, businessID, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
