package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

const (
	noQuestionResult = "No question was provided. Please ask a specific question."
	fallbackResult   = "I couldn't find information about that in the textbook. Please try asking in a different way."
	busyResult       = "The textbook search is busy right now. Please ask again in a moment."
)

type questionRequest struct {
	Question string `json:"question"`
}

func parseQuestion(c *fiber.Ctx) string {
	var req questionRequest
	if err := c.BodyParser(&req); err != nil {
		return ""
	}
	// Form bodies decode into strings backed by the request buffer, and the
	// question is kept as an answer cache key.
	return utils.CopyString(strings.TrimSpace(req.Question))
}

// ToolHandler is the endpoint the voice AI calls mid-conversation. It always
// answers with a "result" field the voice AI can speak.
type ToolHandler struct {
	retriever Retriever
	limiter   *rate.Limiter
	log       logrus.FieldLogger
}

func (h *ToolHandler) Query(c *fiber.Ctx) error {
	if h.limiter != nil && !h.limiter.Allow() {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"result": busyResult})
	}
	question := parseQuestion(c)
	if question == "" {
		h.log.Warn("textbook search called without a question")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"result": noQuestionResult})
	}
	log := h.log.WithField("question", question)
	log.Info("textbook search tool called")

	answer, err := h.retriever.Answer(c.UserContext(), question)
	if err != nil {
		log.WithError(err).Error("textbook search failed")
		return c.JSON(fiber.Map{"result": fallbackResult})
	}
	log.WithField("answer_chars", len(answer)).Debug("textbook answer generated")
	return c.JSON(fiber.Map{"result": answer})
}

// QueryHandler exposes diagnostic endpoints for operators.
type QueryHandler struct {
	retriever Retriever
	log       logrus.FieldLogger
}

// Ask runs the full retrieval answerer.
func (h *QueryHandler) Ask(c *fiber.Ctx) error {
	question := parseQuestion(c)
	if question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Question is required"})
	}
	answer, err := h.retriever.Answer(c.UserContext(), question)
	if err != nil {
		h.log.WithError(err).Error("error answering question")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"question": question, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"question": question, "answer": answer, "source": "textbook-rag"})
}

// Simple asks the generator directly, bypassing retrieval.
func (h *QueryHandler) Simple(c *fiber.Ctx) error {
	question := parseQuestion(c)
	if question == "" {
		question = "Hello"
	}
	answer, err := h.retriever.SimpleQuery(c.UserContext(), question)
	if err != nil {
		h.log.WithError(err).Error("error in simple query")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"question": question, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"question": question, "answer": answer})
}

// SearchHit is one retrieved passage.
type SearchHit struct {
	DocumentID string  `json:"documentId"`
	Filename   string  `json:"filename"`
	Index      int     `json:"chunkIndex"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// SearchResponse is the body returned by Search.
type SearchResponse struct {
	Question string      `json:"question"`
	Results  []SearchHit `json:"results"`
}

// Search returns the passages retrieval would ground an answer on.
func (h *QueryHandler) Search(c *fiber.Ctx) error {
	question := parseQuestion(c)
	if question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Question is required"})
	}
	results, err := h.retriever.Search(c.UserContext(), question)
	if err != nil {
		h.log.WithError(err).Error("error searching textbook")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"question": question, "error": err.Error()})
	}
	return c.JSON(SearchResponse{Question: question, Results: hits(results)})
}

func hits(results []domain.SearchResult) []SearchHit {
	out := make([]SearchHit, 0, len(results))
	for _, r := range results {
		out = append(out, SearchHit{
			DocumentID: r.Passage.DocumentID,
			Filename:   r.Passage.SourceName,
			Index:      r.Passage.Index,
			Score:      r.Score,
			Text:       r.Passage.Text,
		})
	}
	return out
}
