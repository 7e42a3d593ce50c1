package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"finsight/internal/dto"
	"finsight/internal/models"
	"finsight/internal/service"
)

type DocumentHandler struct {
	docService *service.DocumentService
	pipeline   *service.PipelineService
	logger     *zap.Logger
}

func NewDocumentHandler(docService *service.DocumentService, pipeline *service.PipelineService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		pipeline:   pipeline,
		logger:     logger,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is required",
		})
	}

	kind, ok := models.ParseDocumentKind(c.FormValue("kind"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document kind, expected paystub or bank_statement",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to open file",
		})
	}
	defer src.Close()

	doc, err := h.docService.UploadDocument(c.Context(), src, file.Filename, kind)
	if err != nil {
		h.logger.Error("Failed to upload document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.ToDocumentResponse(doc))
}

func (h *DocumentHandler) ProcessDocument(c *fiber.Ctx) error {
	documentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID",
		})
	}

	result, err := h.pipeline.Run(c.Context(), documentID)
	if err != nil {
		return h.processError(c, documentID, err)
	}

	doc, err := h.docService.GetDocument(c.Context(), documentID)
	if err != nil {
		h.logger.Error("Failed to reload document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load document",
		})
	}

	return c.JSON(dto.ProcessDocumentResponse{
		Document:  dto.ToDocumentResponse(doc),
		Paystub:   dto.ToPaystubResponse(result.Paystub),
		Statement: dto.ToStatementResponse(result.Statement),
	})
}

// processError maps pipeline failures onto HTTP statuses. Document-level
// extraction failures are the client's document being unreadable, not a
// server fault.
func (h *DocumentHandler) processError(c *fiber.Ctx, documentID uuid.UUID, err error) error {
	var renderErr *service.RenderError
	var noData *service.NoUsableDataError
	var configErr *service.ConfigError

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	case errors.As(err, &renderErr), errors.As(err, &noData):
		h.logger.Warn("Document processing failed",
			zap.String("document_id", documentID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.As(err, &configErr):
		h.logger.Error("Pipeline misconfigured", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Pipeline is not configured",
		})
	default:
		h.logger.Error("Failed to process document",
			zap.String("document_id", documentID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	documentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID",
		})
	}

	doc, err := h.docService.GetDocument(c.Context(), documentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		}
		h.logger.Error("Failed to load document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load document",
		})
	}

	return c.JSON(dto.ToDocumentResponse(doc))
}

func (h *DocumentHandler) GetResult(c *fiber.Ctx) error {
	documentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID",
		})
	}

	doc, paystub, statement, err := h.docService.GetResult(c.Context(), documentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		}
		if errors.Is(err, service.ErrRecordMissing) {
			h.logger.Error("Extraction record missing for completed document",
				zap.String("document_id", documentID.String()),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Extraction record is missing for this document",
			})
		}
		h.logger.Error("Failed to load result", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load result",
		})
	}

	return c.JSON(dto.ProcessDocumentResponse{
		Document:  dto.ToDocumentResponse(doc),
		Paystub:   dto.ToPaystubResponse(paystub),
		Statement: dto.ToStatementResponse(statement),
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	offset := c.QueryInt("offset", 0)

	docs, err := h.docService.ListDocuments(c.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	return c.JSON(dto.ToDocumentResponses(docs))
}
