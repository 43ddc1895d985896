package suppliers

import (
	"encoding/json"

	"github.com/google/uuid"
)

type resolveRequest struct {
	SupplierName string `json:"supplierName" validate:"required"`
	UserID       string `json:"userId"`
}

type resolveResponse struct {
	Success    bool      `json:"success"`
	SupplierID uuid.UUID `json:"supplierId"`
	IsNew      bool      `json:"isNew"`
	Supplier   Supplier  `json:"supplier"`
}

type updateRequest struct {
	SupplierID string                     `json:"supplierId" validate:"required"`
	UpdateData map[string]json.RawMessage `json:"updateData" validate:"required,min=1"`
	UserID     string                     `json:"userId"`
}

type updateResponse struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Supplier Supplier `json:"supplier"`
}

type listResponse struct {
	Data  []Supplier `json:"data"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}
