package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/itsmycolor/commerce-core/internal/domain/order"
)

type orderItemReq struct {
	ProductID   string          `json:"productId"`
	BrandID     string          `json:"brandId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	ImageURL    string          `json:"imageUrl"`
}

type createOrderReq struct {
	Currency      string          `json:"currency"`
	ShippingFee   decimal.Decimal `json:"shippingFee"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	CouponID      string          `json:"couponId"`
	OrderItems    []orderItemReq  `json:"orderItems"`
	ReceiverName  string          `json:"receiverName"`
	ReceiverPhone string          `json:"receiverPhone"`
	Address       string          `json:"address"`
	PostalCode    string          `json:"postalCode"`
	DeliveryMemo  string          `json:"deliveryMemo"`
	AgreePurchase bool            `json:"agreePurchase"`
	AgreePrivacy  bool            `json:"agreePrivacy"`
}

type orderItemResp struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	BrandID     string          `json:"brandId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	ImageURL    string          `json:"imageUrl"`
	IsReviewed  bool            `json:"isReviewed"`
}

type orderResp struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Status          order.Status    `json:"status"`
	Currency        string          `json:"currency"`
	ProductAmount   decimal.Decimal `json:"productAmount"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	ShippingFee     decimal.Decimal `json:"shippingFee"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	CouponID        string          `json:"couponId,omitempty"`
	ReceiverName    string          `json:"receiverName"`
	ReceiverPhone   string          `json:"receiverPhone"`
	Address         string          `json:"address"`
	PostalCode      string          `json:"postalCode"`
	DeliveryMemo    string          `json:"deliveryMemo,omitempty"`
	DeliveryCompany string          `json:"deliveryCompany,omitempty"`
	TrackingNumber  string          `json:"deliveryTrackingNumber,omitempty"`
	IsSettled       bool            `json:"isSettled"`
	Items           []orderItemResp `json:"orderItems"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func toOrderResp(o *order.Order) orderResp {
	resp := orderResp{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		Currency:        o.Currency,
		ProductAmount:   o.ProductAmount,
		DiscountAmount:  o.DiscountAmount,
		ShippingFee:     o.ShippingFee,
		TotalAmount:     o.TotalAmount,
		CouponID:        o.CouponID,
		ReceiverName:    o.ReceiverName,
		ReceiverPhone:   o.ReceiverPhone,
		Address:         o.Address,
		PostalCode:      o.PostalCode,
		DeliveryMemo:    o.DeliveryMemo,
		DeliveryCompany: o.DeliveryCompany,
		TrackingNumber:  o.TrackingNumber,
		IsSettled:       o.IsSettled,
		Items:           make([]orderItemResp, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for i, item := range o.Items {
		resp.Items[i] = orderItemResp{
			ID:          item.ID,
			ProductID:   item.ProductID,
			BrandID:     item.BrandID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Size:        item.Size,
			Color:       item.Color,
			ImageURL:    item.ImageURL,
			IsReviewed:  item.IsReviewed,
		}
	}
	return resp
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req createOrderReq
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]order.ItemRequest, len(req.OrderItems))
	for i, item := range req.OrderItems {
		items[i] = order.ItemRequest{
			ProductID:   item.ProductID,
			BrandID:     item.BrandID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Size:        item.Size,
			Color:       item.Color,
			ImageURL:    item.ImageURL,
		}
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		Currency:      req.Currency,
		ShippingFee:   req.ShippingFee,
		TotalAmount:   req.TotalAmount,
		CouponID:      req.CouponID,
		Items:         items,
		ReceiverName:  req.ReceiverName,
		ReceiverPhone: req.ReceiverPhone,
		Address:       req.Address,
		PostalCode:    req.PostalCode,
		DeliveryMemo:  req.DeliveryMemo,
		AgreePurchase: req.AgreePurchase,
		AgreePrivacy:  req.AgreePrivacy,
	}, uid)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResp(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

type updateStatusReq struct {
	Status          order.Status `json:"status"`
	DeliveryCompany string       `json:"deliveryCompany"`
	TrackingNumber  string       `json:"deliveryTrackingNumber"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.UpdateStatusRequest{
		Status:          req.Status,
		DeliveryCompany: req.DeliveryCompany,
		TrackingNumber:  req.TrackingNumber,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

type bulkStatusReq struct {
	OrderIDs []string     `json:"orderIds"`
	Status   order.Status `json:"status"`
}

func (h *Handler) bulkUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusReq
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.orders.BulkUpdateStatus(r.Context(), req.OrderIDs, req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listDelayedOrders(w http.ResponseWriter, r *http.Request) {
	delayed, err := h.orders.ListDelayed(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]orderResp, len(delayed))
	for i := range delayed {
		out[i] = toOrderResp(&delayed[i])
	}
	writeJSON(w, http.StatusOK, out)
}
