package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"

	"github.com/millionx-hackathon/educational-voice-agent/internal/orchestrator"
)

// TwilioHandler serves the telephony provider's webhooks.
type TwilioHandler struct {
	calls         CallLifecycle
	sessions      SessionLister
	publicBaseURL string
	log           logrus.FieldLogger
}

// IncomingCall answers a new call with bridging markup.
func (h *TwilioHandler) IncomingCall(c *fiber.Ctx) error {
	in := orchestrator.IncomingCall{
		CallID:  formValue(c, "CallSid"),
		From:    formValue(c, "From"),
		BaseURL: BaseURL(c, h.publicBaseURL),
	}
	h.log.WithFields(logrus.Fields{"call_id": in.CallID, "from": in.From}).Info("incoming call")
	return sendMarkup(c, h.calls.HandleIncomingCall(c.UserContext(), in))
}

// StreamEnded terminates the call and hangs up.
func (h *TwilioHandler) StreamEnded(c *fiber.Ctx) error {
	cc := h.calls.HandleStreamEnded(c.UserContext(), formValue(c, "CallSid"), formValue(c, "CallStatus"))
	return sendMarkup(c, cc)
}

// CallStatus acknowledges status callbacks.
func (h *TwilioHandler) CallStatus(c *fiber.Ctx) error {
	ack := h.calls.HandleCallStatus(c.UserContext(), formValue(c, "CallSid"), formValue(c, "CallStatus"), formValue(c, "CallDuration"))
	return c.SendString(ack)
}

// ActiveCalls lists the live sessions.
func (h *TwilioHandler) ActiveCalls(c *fiber.Ctx) error {
	calls := h.sessions.Snapshot()
	return c.JSON(fiber.Map{
		"count": len(calls),
		"calls": calls,
	})
}

// formValue copies the value out of the request buffer, which fiber reuses
// once the handler returns. Call ids outlive the request as registry keys.
func formValue(c *fiber.Ctx, key string) string {
	return utils.CopyString(c.FormValue(key))
}

func sendMarkup(c *fiber.Ctx, cc orchestrator.CallControl) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.SendString(string(cc))
}
