package dto

import "time"

type TextScanRequest struct {
	Text string `json:"text" example:"sugar, gelatin, citric acid"`
}

type BarcodeScanRequest struct {
	Barcode string `json:"barcode" example:"5000159484695"`
}

type IngredientResponse struct {
	Name   string `json:"name" example:"gelatin"`
	Status string `json:"status" example:"HARAM"`
}

type ScanResponse struct {
	Status      string               `json:"status" example:"HARAM"`
	Reason      string               `json:"reason" example:"Contains gelatin of unspecified origin"`
	Ingredients []IngredientResponse `json:"ingredients_detected"`
	Confidence  int                  `json:"confidence" example:"92"`
	HistoryID   string               `json:"history_id,omitempty" example:"0192f0c4-7a1e-7c3d-9b7e-5f0e4c2a1b3d"`
}

type CancelScanResponse struct {
	Cancelled bool `json:"cancelled" example:"true"`
}

type HistoryEntryResponse struct {
	ID        string       `json:"id" example:"0192f0c4-7a1e-7c3d-9b7e-5f0e4c2a1b3d"`
	Timestamp time.Time    `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Result    ScanResponse `json:"result"`
	Thumbnail []byte       `json:"thumbnail,omitempty" swaggertype:"string" format:"base64"`
}

type HistoryResponse struct {
	Entries []HistoryEntryResponse `json:"entries"`
	Limit   int                    `json:"limit" example:"30"`
}

type EntitlementResponse struct {
	Premium bool `json:"premium" example:"false"`
}

type UpdateEntitlementRequest struct {
	Premium *bool `json:"premium" example:"true"`
}
