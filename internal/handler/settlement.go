package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/itsmycolor/commerce-core/internal/domain/settlement"
)

type settlementResp struct {
	ID                     string            `json:"id"`
	BrandID                string            `json:"brandId"`
	SettlementMonth        string            `json:"settlementMonth"`
	TotalSales             decimal.Decimal   `json:"totalSales"`
	CommissionRate         decimal.Decimal   `json:"commissionRate"`
	CommissionAmount       decimal.Decimal   `json:"commissionAmount"`
	ActualSettlementAmount decimal.Decimal   `json:"actualSettlementAmount"`
	Status                 settlement.Status `json:"status"`
	SettledAt              *time.Time        `json:"settledAt,omitempty"`
	CreatedAt              time.Time         `json:"createdAt"`
}

func toSettlementResp(s *settlement.Settlement) settlementResp {
	return settlementResp{
		ID:                     s.ID,
		BrandID:                s.BrandID,
		SettlementMonth:        s.SettlementMonth,
		TotalSales:             s.TotalSales,
		CommissionRate:         s.CommissionRate,
		CommissionAmount:       s.CommissionAmount,
		ActualSettlementAmount: s.ActualSettlementAmount,
		Status:                 s.Status,
		SettledAt:              s.SettledAt,
		CreatedAt:              s.CreatedAt,
	}
}

// calculateBrandSettlement computes a settlement from query parameters:
// brandId (required), commissionRate (required, percent), year+month
// (optional pair; both absent means all time).
func (h *Handler) calculateBrandSettlement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	brandID := q.Get("brandId")
	if brandID == "" {
		writeError(w, http.StatusBadRequest, "brandId is required")
		return
	}

	rateStr := q.Get("commissionRate")
	if rateStr == "" {
		writeError(w, http.StatusBadRequest, "commissionRate is required")
		return
	}
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "commissionRate must be a number")
		return
	}

	var year, month int
	if ys, ms := q.Get("year"), q.Get("month"); ys != "" || ms != "" {
		if year, err = strconv.Atoi(ys); err != nil {
			writeError(w, http.StatusBadRequest, "year must be a number")
			return
		}
		if month, err = strconv.Atoi(ms); err != nil {
			writeError(w, http.StatusBadRequest, "month must be a number")
			return
		}
	}

	s, err := h.settlements.CalculateForBrand(r.Context(), settlement.CalculateRequest{
		BrandID:        brandID,
		Year:           year,
		Month:          time.Month(month),
		CommissionRate: rate,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettlementResp(s))
}

func (h *Handler) confirmSettlement(w http.ResponseWriter, r *http.Request) {
	s, err := h.settlements.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResp(s))
}

func (h *Handler) completeSettlementPayment(w http.ResponseWriter, r *http.Request) {
	s, err := h.settlements.CompletePayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResp(s))
}
