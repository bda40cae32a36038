package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/domain"
	"github.com/ssraminder/financial-dashboard/internal/reconcile"
	"github.com/ssraminder/financial-dashboard/internal/service"
)

// ============================================================
// Review sessions
// ============================================================

func createSessionHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sessions")
		defer span.End()

		view, err := svc.CreateSession(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func closeSessionHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CloseSession(chi.URLParam(r, "sessionId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func selectStatementHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/sessions/{sessionId}/selection")
		defer span.End()

		sessionID := chi.URLParam(r, "sessionId")
		var req struct {
			BankAccountID string `json:"bank_account_id"`
			StatementID   string `json:"statement_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("statement.id", req.StatementID),
		)

		view, err := svc.Select(ctx, sessionID, req.BankAccountID, req.StatementID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func ledgerHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/sessions/{sessionId}/ledger")
		defer span.End()

		criteria, err := parseCriteria(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		view, err := svc.Ledger(ctx, chi.URLParam(r, "sessionId"), criteria)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func toggleHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sessions/{sessionId}/transactions/{transactionId}/toggle")
		defer span.End()

		res, err := svc.Toggle(ctx, chi.URLParam(r, "sessionId"), chi.URLParam(r, "transactionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func setAmountHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/sessions/{sessionId}/transactions/{transactionId}/amount")
		defer span.End()

		var req struct {
			Amount *float64 `json:"amount"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Amount == nil {
			writeError(w, http.StatusBadRequest, "amount is required")
			return
		}

		res, err := svc.SetAmount(ctx, chi.URLParam(r, "sessionId"), chi.URLParam(r, "transactionId"), *req.Amount)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func resetHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sessions/{sessionId}/reset")
		defer span.End()

		view, err := svc.Reset(ctx, chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func commitHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sessions/{sessionId}/commit")
		defer span.End()

		out, err := svc.Commit(ctx, chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.Int("commit.updated", len(out.Updated)),
			attribute.Int("commit.failed", len(out.Failed)),
		)

		status := http.StatusOK
		if len(out.Failed) > 0 {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, out)
	}
}

func confirmHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sessions/{sessionId}/confirm")
		defer span.End()

		view, err := svc.Confirm(ctx, chi.URLParam(r, "sessionId"), ActorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// parseCriteria reads ledger display filters from the query string.
func parseCriteria(r *http.Request) (reconcile.Criteria, error) {
	q := r.URL.Query()
	c := reconcile.Criteria{
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
		Search:   q.Get("q"),
	}

	for key, v := range map[string]string{"date_from": c.DateFrom, "date_to": c.DateTo} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, v); err != nil {
			return c, &domain.ErrValidation{Field: key, Message: "must be YYYY-MM-DD"}
		}
	}

	switch d := domain.Direction(q.Get("direction")); {
	case d == "" || d == "all":
	case d.Valid():
		c.Direction = d
	default:
		return c, &domain.ErrValidation{Field: "direction", Message: "must be credit, debit or all"}
	}

	for key, dst := range map[string]**float64{"min_amount": &c.MinAmount, "max_amount": &c.MaxAmount} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, &domain.ErrValidation{Field: key, Message: "must be a number"}
		}
		*dst = &f
	}

	switch s := reconcile.StatusFilter(q.Get("status")); s {
	case "", reconcile.StatusAll:
	case reconcile.StatusChanged, reconcile.StatusNeedsReview, reconcile.StatusEdited:
		c.Status = s
	default:
		return c, &domain.ErrValidation{Field: "status", Message: "must be all, changed, needs_review or edited"}
	}
	return c, nil
}
