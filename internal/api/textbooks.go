package api

import (
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/millionx-hackathon/educational-voice-agent/internal/service"
)

// TextbookHandler handles textbook uploads.
type TextbookHandler struct {
	ingester       Ingester
	maxUploadBytes int64
	log            logrus.FieldLogger
}

func uploadError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "message": message})
}

// Upload extracts, chunks and indexes a PDF or plain-text textbook.
func (h *TextbookHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return uploadError(c, fiber.StatusBadRequest, "A file is required in the 'file' field")
	}
	log := h.log.WithFields(logrus.Fields{"filename": fileHeader.Filename, "size": fileHeader.Size})
	log.Info("received textbook upload")

	if fileHeader.Size == 0 {
		return uploadError(c, fiber.StatusBadRequest, "File is empty")
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		return uploadError(c, fiber.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds the %d MB upload limit", h.maxUploadBytes>>20))
	}

	f, err := fileHeader.Open()
	if err != nil {
		return uploadError(c, fiber.StatusInternalServerError, "Failed to read upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return uploadError(c, fiber.StatusInternalServerError, "Failed to read upload")
	}

	result, err := h.ingester.Ingest(c.UserContext(), service.IngestRequest{
		Data:        data,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Filename:    fileHeader.Filename,
	})
	switch {
	case errors.Is(err, service.ErrUnsupportedDocument):
		return uploadError(c, fiber.StatusUnsupportedMediaType, "Only PDF and plain-text files are supported")
	case errors.Is(err, service.ErrEmptyDocument):
		return uploadError(c, fiber.StatusBadRequest, "The document contains no extractable text")
	case err != nil:
		log.WithError(err).WithField("committed_chunks", result.Passages).Error("error processing textbook")
		return uploadError(c, fiber.StatusInternalServerError, "Failed to process textbook: "+err.Error())
	}

	return c.JSON(fiber.Map{
		"status":     "success",
		"documentId": result.DocumentID,
		"filename":   result.Filename,
		"chunks":     result.Passages,
		"preview":    result.Preview,
		"message":    "Textbook indexed successfully",
	})
}

// Health reports the textbook service status and corpus size.
func (h *TextbookHandler) Health(c *fiber.Ctx) error {
	body := fiber.Map{"status": "ok", "service": "textbook-controller"}
	stats, err := h.ingester.Stats(c.UserContext())
	if err != nil {
		h.log.WithError(err).Warn("corpus index unavailable")
		body["status"] = "degraded"
		body["error"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}
	body["passages"] = stats.Passages
	body["embedder"] = stats.Embedder
	if stats.Dimension > 0 {
		body["dimension"] = stats.Dimension
	}
	return c.JSON(body)
}

// Reset drops the whole corpus index.
func (h *TextbookHandler) Reset(c *fiber.Ctx) error {
	if err := h.ingester.Reset(c.UserContext()); err != nil {
		h.log.WithError(err).Error("failed to clear corpus index")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Failed to clear textbooks: " + err.Error()})
	}
	h.log.Warn("corpus index cleared")
	return c.JSON(fiber.Map{"status": "success", "message": "All textbooks removed"})
}
