package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"regdash/internal/analytics"
	"regdash/internal/core"
	"regdash/internal/log"
)

// failure is the client-facing description of an error.
type failure = ErrorDetail

// classify maps an error onto a status code and a client-facing message.
// Server-side failures get a generic message; the cause is logged.
func classify(err error) (int, failure) {
	switch {
	case errors.Is(err, errBadParam):
		return http.StatusBadRequest, failure{Kind: "bad_request", Message: err.Error()}
	case errors.Is(err, core.ErrInvalidPeriod):
		return http.StatusBadRequest, failure{Kind: "invalid_period", Message: "period must be one of week, month or quarter"}
	case errors.Is(err, core.ErrIncompleteTrendData):
		return http.StatusUnprocessableEntity, failure{Kind: "incomplete_trend_data", Message: "compliance trend data for this period is incomplete"}
	case errors.Is(err, core.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, failure{Kind: "store_unavailable", Message: "report data is temporarily unavailable"}
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, failure{Kind: "canceled", Message: "request canceled"}
	default:
		return http.StatusInternalServerError, failure{Kind: "internal", Message: "failed to build dashboard"}
	}
}

func errorResponse(err error) *ResponseBuilder {
	code, f := classify(err)
	return ErrorResponse(code, f.Kind, f.Message)
}

// assemble builds one period and logs the outcome. Periods without records
// come back as the empty view model.
func (s *Server) assemble(ctx context.Context, p analytics.Params) (analytics.ViewModel, error) {
	started := time.Now()
	vm, err := s.dashboard.AssembleOrEmpty(ctx, p)
	if err != nil {
		s.logAssemblyError(ctx, p, err)
		return analytics.ViewModel{}, err
	}
	s.events.LogDashboardAssembled(ctx, string(vm.Period), vm.Window.Start.String(), vm.Window.End.String(),
		submitted(vm), vm.Empty, time.Since(started))
	return vm, nil
}

func (s *Server) logAssemblyError(ctx context.Context, p analytics.Params, err error) {
	code, f := classify(err)
	fields := log.NewFields().WithErrorType(f.Kind)
	fields[log.FieldPeriod] = string(p.Period)
	fields[log.FieldAsOf] = core.DateOf(p.AsOf).String()

	var aerr *analytics.AssemblyError
	if errors.As(err, &aerr) {
		fields["stage"] = aerr.Stage
	}
	if code >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Dashboard assembly failed", err,
			log.ComponentDashboard, log.OpAssemble, fields)
		return
	}
	log.FromContext(ctx).WarnContext(ctx, "Dashboard assembly rejected",
		append(fields.WithError(err).ToSlice(), log.FieldComponent, log.ComponentDashboard)...)
}

func submitted(vm analytics.ViewModel) int {
	if v := vm.Metrics.TotalSubmitted.Value; v != nil {
		return int(*v)
	}
	return 0
}

// handleDashboard returns the view model for one period as JSON.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	params, err := ParseDashboardParams(r.URL.Query(), s.now())
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	vm, err := s.assemble(r.Context(), params)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	NewResponse().JSON(vm).Write(w)
}

// Overview is the payload of /api/dashboard/overview.
type Overview struct {
	AsOf       core.Date             `json:"asOf"`
	Dashboards []analytics.ViewModel `json:"dashboards"`
}

// handleOverview assembles every period for the same asOf.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if r.URL.Query().Has("period") {
		BadRequestError("overview covers every period; drop the period parameter").Write(w)
		return
	}
	params, err := ParseDashboardParams(r.URL.Query(), s.now())
	if err != nil {
		errorResponse(err).Write(w)
		return
	}

	vms, err := s.dashboard.AssembleAll(r.Context(), params.AsOf, params.RecentLimit)
	if err != nil {
		s.logAssemblyError(r.Context(), params, err)
		errorResponse(err).Write(w)
		return
	}
	NewResponse().JSON(Overview{AsOf: core.DateOf(params.AsOf), Dashboards: vms}).Write(w)
}

// handleExport serializes one period's view model as a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	format, err := ParseExportFormat(r.URL.Query())
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	params, err := ParseDashboardParams(r.URL.Query(), s.now())
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	vm, err := s.assemble(r.Context(), params)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}

	body, contentType, err := Export(vm, format)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Dashboard export failed", err,
			log.ComponentDashboard, log.OpExport, nil)
		ErrorResponse(http.StatusInternalServerError, "internal", "export failed").Write(w)
		return
	}
	filename := fmt.Sprintf("regdash-%s-%s.%s", vm.Period, vm.AsOf, format)
	NewResponse().
		Header("Content-Disposition", `attachment; filename="`+filename+`"`).
		Body(contentType, body).
		Write(w)
}
