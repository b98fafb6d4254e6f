package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github/itish2003/pdfchat/models"
	"github/itish2003/pdfchat/services"
)

// ChatController handles the HTTP requests for the PDF chat API. It depends on
// the extractor, the shared context store and the ChatService.
type ChatController struct {
	extractor   services.Extractor
	store       *services.ContextStore
	chatService services.ChatService
}

// NewChatController is called from main.go to inject the service dependencies.
func NewChatController(extractor services.Extractor, store *services.ContextStore, chatService services.ChatService) *ChatController {
	return &ChatController{
		extractor:   extractor,
		store:       store,
		chatService: chatService,
	}
}

// Health is the Gin handler for GET /health.
func (c *ChatController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}

// UploadPDF is the Gin handler for POST /upload-pdf. The extracted text
// replaces whatever document was loaded before; a failed extraction leaves it
// untouched.
func (c *ChatController) UploadPDF(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "could not read uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "could not read uploaded file: " + err.Error()})
		return
	}

	logger := log.WithFields(log.Fields{
		"request_id": ctx.GetString("request_id"),
		"filename":   fileHeader.Filename,
		"bytes":      len(data),
	})

	text, err := c.extractor.Extract(ctx.Request.Context(), data)
	if err != nil {
		logger.WithError(err).Error("Error processing PDF")
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.store.Set(text)
	characters := len([]rune(text))
	logger.WithField("characters", characters).Info("PDF loaded")

	ctx.JSON(http.StatusOK, models.UploadPDFResponse{
		Message:    "PDF loaded successfully",
		Characters: characters,
	})
}

// ChatStream is the Gin handler for GET /chat_stream. It answers with a
// text/event-stream of content events terminated by a single done or error
// event. If the client goes away the stream ends without a terminal event.
func (c *ChatController) ChatStream(ctx *gin.Context) {
	var req models.ChatStreamRequest
	// An empty message is still a question; only an absent one is rejected.
	if _, ok := ctx.GetQuery("message"); !ok {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "message is required"})
		return
	}
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid query: " + err.Error()})
		return
	}
	req.RequestID = ctx.GetString("request_id")

	reqCtx := ctx.Request.Context()
	stream, err := c.chatService.OpenStream(reqCtx, req)
	if errors.Is(err, services.ErrNoContext) {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "No PDF context loaded"})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	defer stream.Close()

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.Status(http.StatusOK)
	ctx.Writer.WriteHeaderNow()
	ctx.Writer.Flush()

	for {
		event, ok := stream.Next(reqCtx)
		if !ok {
			return
		}
		if err := writeEvent(ctx.Writer, event); err != nil {
			log.WithError(err).Warn("Failed to write stream event")
			return
		}
	}
}

// writeEvent writes one SSE frame and flushes it to the client.
func writeEvent(w gin.ResponseWriter, event models.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	w.Flush()
	return nil
}
