package http

import (
	"net/http"

	"bollette/internal/core"
)

type templateRequest struct {
	Name          string   `json:"name"`
	Vendor        string   `json:"vendor"`
	AmountType    string   `json:"amountType"`
	FixedAmount   string   `json:"fixedAmount"`
	Frequency     string   `json:"frequency"`
	DueDay        int      `json:"dueDay"`
	EmailPatterns []string `json:"emailPatterns"`
	PaymentMethod string   `json:"paymentMethod"`
	VendorType    string   `json:"vendorType"`
	AutoApprove   bool     `json:"autoApprove"`
	Active        *bool    `json:"active"`
}

func (req templateRequest) toTemplate() (core.BillTemplate, error) {
	var (
		tmpl core.BillTemplate
		err  error
	)
	switch core.AmountType(req.AmountType) {
	case core.Variable:
		tmpl, err = core.NewVariableTemplate(req.Name, req.Vendor, core.Frequency(req.Frequency), req.DueDay)
	default:
		var amount core.Money
		amount, err = core.ParseMoney(req.FixedAmount)
		if err != nil {
			return core.BillTemplate{}, err
		}
		tmpl, err = core.NewFixedTemplate(req.Name, req.Vendor, amount, core.Frequency(req.Frequency), req.DueDay)
	}
	if err != nil {
		return core.BillTemplate{}, err
	}

	tmpl.EmailPatterns = req.EmailPatterns
	tmpl.PaymentMethod = req.PaymentMethod
	tmpl.VendorType = req.VendorType
	tmpl.AutoApprove = req.AutoApprove
	if req.Active != nil {
		tmpl.Active = *req.Active
	}
	return tmpl, nil
}

type templateResponse struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Vendor        string   `json:"vendor"`
	AmountType    string   `json:"amountType"`
	FixedAmount   string   `json:"fixedAmount,omitempty"`
	Frequency     string   `json:"frequency"`
	DueDay        int      `json:"dueDay"`
	EmailPatterns []string `json:"emailPatterns,omitempty"`
	PaymentMethod string   `json:"paymentMethod,omitempty"`
	VendorType    string   `json:"vendorType,omitempty"`
	AutoApprove   bool     `json:"autoApprove"`
	Active        bool     `json:"active"`
}

func toTemplateResponse(t core.BillTemplate) templateResponse {
	resp := templateResponse{
		ID:            t.ID,
		Name:          t.Name,
		Vendor:        t.Vendor,
		AmountType:    string(t.AmountType),
		Frequency:     string(t.Frequency),
		DueDay:        t.DueDay,
		EmailPatterns: t.EmailPatterns,
		PaymentMethod: t.PaymentMethod,
		VendorType:    t.VendorType,
		AutoApprove:   t.AutoApprove,
		Active:        t.Active,
	}
	if t.AmountType == core.Fixed {
		resp.FixedAmount = t.FixedAmount.String()
	}
	return resp
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	tmpl, err := req.toTemplate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.repo.CreateTemplate(r.Context(), tmpl)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(created))
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	tmpl, err := req.toTemplate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tmpl.ID = id

	if err := s.repo.UpdateTemplate(r.Context(), tmpl); err != nil {
		writeDomainError(w, err)
		return
	}

	s.queries.Invalidate()
	writeJSON(w, http.StatusOK, toTemplateResponse(tmpl))
}

func (s *Server) handleDeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.DeactivateTemplate(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	s.queries.Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{"templateId": id, "active": false})
}

type ruleRequest struct {
	RuleType           string  `json:"ruleType"`
	FinancialAccountID string  `json:"financialAccountId"`
	VendorPattern      string  `json:"vendorPattern"`
	Amount             string  `json:"amount"`
	AmountVariance     float64 `json:"amountVariance"`
	DescriptionPattern string  `json:"descriptionPattern"`
	TransactionType    string  `json:"transactionType"`
}

func (req ruleRequest) toRule() (core.SkipRule, error) {
	txType := core.TransactionType(req.TransactionType)
	switch core.RuleType(req.RuleType) {
	case core.RuleAccount:
		return core.NewAccountRule(req.FinancialAccountID, txType)
	case core.RuleVendor:
		return core.NewVendorRule(req.VendorPattern, txType)
	case core.RuleVendorAmount:
		amount, err := core.ParseMoney(req.Amount)
		if err != nil {
			return core.SkipRule{}, err
		}
		return core.NewVendorAmountRule(req.VendorPattern, amount, req.AmountVariance, txType)
	case core.RuleDescriptionPattern:
		return core.NewDescriptionRule(req.DescriptionPattern, txType)
	default:
		return core.SkipRule{}, core.ErrInvalidRuleType
	}
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rule, err := req.toRule()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.repo.CreateSkipRule(r.Context(), rule)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       created.ID,
		"ruleType": string(created.RuleType),
		"active":   created.Active,
	})
}

func (s *Server) handleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.DeactivateSkipRule(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ruleId": id, "active": false})
}

type foundersRequest struct {
	Founders []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"founders"`
}

// handleReplaceFounders syncs the co-owner roster from the user-directory
// component. Splits of existing pending bills are not recomputed here; the
// next generation or matching pass re-syncs them.
func (s *Server) handleReplaceFounders(w http.ResponseWriter, r *http.Request) {
	var req foundersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Founders) == 0 {
		writeError(w, http.StatusBadRequest, "founders list cannot be empty")
		return
	}

	founders := make([]core.Founder, len(req.Founders))
	for i, f := range req.Founders {
		if f.ID < 1 || f.Name == "" {
			writeError(w, http.StatusBadRequest, "each founder needs a positive id and a name")
			return
		}
		founders[i] = core.Founder{ID: f.ID, Name: f.Name}
	}

	if err := s.repo.ReplaceFounders(r.Context(), founders); err != nil {
		writeDomainError(w, err)
		return
	}

	s.queries.Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{"founders": len(founders)})
}
