package http

import (
	"net/http"
	"time"

	"bollette/internal/core"
	"bollette/internal/services"
)

type generateRequest struct {
	MonthsBack    *int `json:"monthsBack"`
	MonthsForward *int `json:"monthsForward"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	back, forward := s.monthsBack, s.monthsForward
	if req.MonthsBack != nil {
		back = *req.MonthsBack
	}
	if req.MonthsForward != nil {
		forward = *req.MonthsForward
	}
	if back < 0 || forward < 0 || back+forward > 48 {
		writeError(w, http.StatusBadRequest, "generation window out of range")
		return
	}

	report, err := s.generator.Generate(r.Context(), back, forward)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.queries.Invalidate()
	writeJSON(w, http.StatusOK, report)
}

type consolidateRequest struct {
	Scope string `json:"scope"`
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	var req consolidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Scope == "" {
		req.Scope = string(services.ScopeAll)
	}

	report, err := s.consolidator.Consolidate(r.Context(), services.Scope(req.Scope))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.queries.Invalidate()
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleFixOrphans(w http.ResponseWriter, r *http.Request) {
	linked, ambiguous, err := s.consolidator.FixOrphans(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.queries.Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{
		"orphansLinked": linked,
		"ambiguous":     ambiguous,
	})
}

type matchRequest struct {
	ID          string `json:"id"`
	AccountID   string `json:"accountId"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Direction   string `json:"direction"`
}

// handleMatch runs one transaction through the matching engine synchronously.
// The AMQP consumer covers the steady-state flow; this endpoint exists for
// replays and manual triage.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
		return
	}
	direction := core.TransactionType(req.Direction)
	if direction != core.Income && direction != core.Expense {
		direction = core.Expense
	}

	result, err := s.matcher.Match(r.Context(), core.Transaction{
		ID:          req.ID,
		AccountID:   req.AccountID,
		Description: req.Description,
		Amount:      amount,
		Date:        date,
		Direction:   direction,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.queries.Invalidate()
	resp := map[string]any{
		"transactionId": req.ID,
		"outcome":       string(result.Outcome),
	}
	if result.RuleID != 0 {
		resp["ruleId"] = result.RuleID
	}
	if result.InstanceID != 0 {
		resp["instanceId"] = result.InstanceID
	}
	if result.TemplateID != 0 {
		resp["templateId"] = result.TemplateID
	}
	if !result.Period.IsZero() {
		resp["period"] = result.Period.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.queries.FounderBalances(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": balances})
}

func (s *Server) handleBills(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	status := core.BillStatus(r.URL.Query().Get("status"))
	switch status {
	case "", core.StatusPending, core.StatusPaid, core.StatusOverdue:
	default:
		writeError(w, http.StatusBadRequest, "unknown status filter: "+string(status))
		return
	}

	bills, err := s.queries.Bills(r.Context(), period, status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (s *Server) handlePaymentPaid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.ledger.MarkFounderPaid(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	s.queries.Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{"paymentId": id, "status": "paid"})
}

type billPaidRequest struct {
	PaidVia  string `json:"paidVia"`
	PaidDate string `json:"paidDate"`
}

// handleBillPaid is the administrative override: the whole instance and all
// founder payments become paid at once.
func (s *Server) handleBillPaid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req billPaidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	paidDate := time.Now().UTC()
	if req.PaidDate != "" {
		paidDate, err = parseDate(req.PaidDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid paidDate: "+err.Error())
			return
		}
	}

	if err := s.ledger.MarkAllPaid(r.Context(), id, paidDate, req.PaidVia); err != nil {
		writeDomainError(w, err)
		return
	}

	s.queries.Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{"billId": id, "status": "paid"})
}
