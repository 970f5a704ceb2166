package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

const unknownCaller = "unknown"

// SummaryHandler serves stored call summaries.
type SummaryHandler struct {
	store      domain.SummaryStore
	summarizer SummaryGenerator
	log        logrus.FieldLogger
	now        func() time.Time
}

func (h *SummaryHandler) List(c *fiber.Ctx) error {
	summaries, err := h.store.List(c.UserContext())
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(summaries)
}

func (h *SummaryHandler) Get(c *fiber.Ctx) error {
	s, err := h.store.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(s)
}

// GetByCall returns the summary recorded for a telephony call id.
func (h *SummaryHandler) GetByCall(c *fiber.Ctx) error {
	s, err := h.store.GetByCallID(c.UserContext(), c.Params("callId"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(s)
}

func (h *SummaryHandler) ListByCaller(c *fiber.Ctx) error {
	summaries, err := h.store.ListByCaller(c.UserContext(), c.Params("caller"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(summaries)
}

type generateRequest struct {
	CallID          string `json:"callId"`
	RemoteSessionID string `json:"ultravoxCallId"`
	CallerID        string `json:"callerNumber"`
}

// Generate summarizes a call on demand, for reprocessing or testing.
func (h *SummaryHandler) Generate(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.RemoteSessionID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ultravoxCallId is required"})
	}
	return h.generate(c, req)
}

// GenerateForRemote summarizes the remote session named in the path.
func (h *SummaryHandler) GenerateForRemote(c *fiber.Ctx) error {
	return h.generate(c, generateRequest{RemoteSessionID: utils.CopyString(c.Params("remoteId"))})
}

func (h *SummaryHandler) generate(c *fiber.Ctx, req generateRequest) error {
	req.CallID = utils.CopyString(req.CallID)
	req.RemoteSessionID = utils.CopyString(req.RemoteSessionID)
	req.CallerID = utils.CopyString(req.CallerID)
	if strings.TrimSpace(req.CallID) == "" {
		req.CallID = "manual-" + strconv.FormatInt(h.clock().UnixMilli(), 10)
	}
	if strings.TrimSpace(req.CallerID) == "" {
		req.CallerID = unknownCaller
	}
	h.log.WithFields(logrus.Fields{"call_id": req.CallID, "remote_session_id": req.RemoteSessionID}).Info("manual summary requested")
	summary := h.summarizer.Summarize(c.UserContext(), domain.Call{
		CallID:          req.CallID,
		RemoteSessionID: req.RemoteSessionID,
		CallerID:        req.CallerID,
	})
	return c.JSON(summary)
}

func (h *SummaryHandler) storeError(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "summary not found"})
	}
	h.log.WithError(err).Error("summary store error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read summaries"})
}

func (h *SummaryHandler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}
