package web

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v3"
)

// StreamAlert streams a workflow's lifecycle events as server-sent events.
// Subscribing to a workflow that already has history delivers one synthetic
// status snapshot first; the stream ends after the workflow's final event,
// or right after the snapshot when the workflow is already finished.
// Subscribing before the workflow exists is allowed and just waits.
func (h *APIHandlers) StreamAlert(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	sub := h.hub.Subscribe(id)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.RequestCtx().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unsubscribe(sub)

		for event := range sub.Events() {
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("Failed to encode stream event",
					"workflow_id", id, "event_type", event.GetType(), "error", err)

				continue
			}

			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.GetType(), data); err != nil {
				return
			}

			// A write error on flush means the client went away; the deferred
			// unsubscribe detaches the observer.
			if err := w.Flush(); err != nil {
				return
			}
		}
	})

	return nil
}
