package dto

import "finsight/internal/models"

type DocumentResponse struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	FileName     string `json:"file_name"`
	FileSize     int64  `json:"file_size"`
	SourceRef    string `json:"source_ref"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	ProcessedAt  string `json:"processed_at,omitempty"`
}

type ProcessDocumentResponse struct {
	Document  DocumentResponse   `json:"document"`
	Paystub   *PaystubResponse   `json:"paystub,omitempty"`
	Statement *StatementResponse `json:"statement,omitempty"`
}

func ToDocumentResponse(doc *models.Document) DocumentResponse {
	resp := DocumentResponse{
		ID:           doc.ID.String(),
		Kind:         string(doc.Kind),
		FileName:     doc.FileName,
		FileSize:     doc.FileSize,
		SourceRef:    doc.SourceRef,
		Status:       string(doc.Status),
		ErrorMessage: doc.ErrorMessage,
		CreatedAt:    doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if doc.ProcessedAt != nil {
		resp.ProcessedAt = doc.ProcessedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func ToDocumentResponses(docs []*models.Document) []DocumentResponse {
	responses := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, ToDocumentResponse(doc))
	}
	return responses
}
