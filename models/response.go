package models

type UploadPDFResponse struct {
	Message    string `json:"message"`
	Characters int    `json:"characters"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
