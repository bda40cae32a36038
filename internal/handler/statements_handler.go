package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/service"
)

// ============================================================
// Bank accounts & statements
// ============================================================

func listBankAccountsHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bank-accounts")
		defer span.End()

		accounts, err := svc.BankAccounts(ctx, queryBool(r, "active", true))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bank_accounts": accounts})
	}
}

func listStatementsHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bank-accounts/{accountId}/statements")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("bank_account.id", accountID))

		statements, err := svc.Statements(ctx, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"statements": statements})
	}
}

func deleteStatementHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/statements/{statementId}")
		defer span.End()

		statementID := chi.URLParam(r, "statementId")
		span.SetAttributes(attribute.String("statement.id", statementID))

		if err := svc.DeleteStatement(ctx, statementID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
