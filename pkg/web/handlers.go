package web

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/socworks/argus/pkg/broadcaster"
	"github.com/socworks/argus/pkg/models"
	"github.com/socworks/argus/pkg/services"
)

//go:embed sample_alerts.json
var sampleAlertsRaw []byte

//go:embed alert_schema.json
var alertSchemaRaw []byte

//go:embed ground_truth.json
var groundTruthRaw []byte

type alertsFile struct {
	Alerts []models.Alert `json:"alerts"`
}

type groundTruthEntry struct {
	AlertID          string          `json:"alert_id"`
	ExpectedVerdict  models.Verdict  `json:"expected_verdict"`
	ExpectedPriority models.Priority `json:"expected_priority"`
	Notes            string          `json:"notes,omitempty"`
}

type groundTruthFile struct {
	Description string             `json:"description"`
	Alerts      []groundTruthEntry `json:"alerts"`
}

type APIHandlers struct {
	alerts      *services.AlertService
	hub         *broadcaster.Hub
	validator   *validator.Validate
	schema      *gojsonschema.Schema
	samples     alertsFile
	groundTruth groundTruthFile
	logger      *slog.Logger
}

func NewAPIHandlers(
	alerts *services.AlertService,
	hub *broadcaster.Hub,
	validate *validator.Validate,
	logger *slog.Logger,
) (*APIHandlers, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(alertSchemaRaw))
	if err != nil {
		return nil, fmt.Errorf("compiling alert upload schema: %w", err)
	}

	var samples alertsFile
	if err := json.Unmarshal(sampleAlertsRaw, &samples); err != nil {
		return nil, fmt.Errorf("parsing embedded sample alerts: %w", err)
	}

	var groundTruth groundTruthFile
	if err := json.Unmarshal(groundTruthRaw, &groundTruth); err != nil {
		return nil, fmt.Errorf("parsing embedded ground truth: %w", err)
	}

	return &APIHandlers{
		alerts:      alerts,
		hub:         hub,
		validator:   validate,
		schema:      schema,
		samples:     samples,
		groundTruth: groundTruth,
		logger:      logger.With("module", "web"),
	}, nil
}

// ProcessAlert accepts one alert and starts its workflow.
func (h *APIHandlers) ProcessAlert(c fiber.Ctx) error {
	var alert models.Alert
	if err := c.Bind().JSON(&alert); err != nil {
		return badRequest(c, "Invalid alert payload: "+err.Error())
	}

	summary, err := h.alerts.Submit(c.Context(), alert)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(newSubmitResponse(summary))
}

// ProcessBatch accepts several alerts and starts a workflow for each.
func (h *APIHandlers) ProcessBatch(c fiber.Ctx) error {
	var req BatchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid batch payload: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Invalid batch payload: "+err.Error())
	}

	summaries, err := h.alerts.SubmitBatch(c.Context(), req.Alerts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(h.batchResponse(summaries))
}

func (h *APIHandlers) batchResponse(summaries []models.Summary) BatchResponse {
	resp := BatchResponse{
		Submitted: len(summaries),
		Workflows: make([]SubmitResponse, 0, len(summaries)),
	}

	for _, summary := range summaries {
		resp.Workflows = append(resp.Workflows, newSubmitResponse(summary))
	}

	return resp
}

// GetStatus returns a workflow's summary, optionally with the full per-stage
// payloads.
func (h *APIHandlers) GetStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	summary, err := h.alerts.Status(id)
	if err != nil {
		return handleServiceError(c, err)
	}

	resp := StatusResponse{Summary: summary}

	if includeDetails, _ := strconv.ParseBool(c.Query("include_details")); includeDetails {
		details, err := h.alerts.Details(id)
		if err != nil {
			return handleServiceError(c, err)
		}

		resp.Details = &details
	}

	return c.JSON(resp)
}

// ListAlerts returns workflow summaries matching the query filters.
func (h *APIHandlers) ListAlerts(c fiber.Ctx) error {
	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			return badRequest(c, "Invalid limit: "+limitStr)
		}

		limit = parsed
	}

	filter, err := services.ParseFilter(c.Query("status"), c.Query("verdict"), c.Query("priority"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	summaries := h.alerts.List(filter)

	return c.JSON(ListResponse{Workflows: summaries, TotalCount: len(summaries)})
}

// GetMetrics returns the aggregated processing counters.
func (h *APIHandlers) GetMetrics(c fiber.Ctx) error {
	return c.JSON(h.alerts.Metrics())
}

// GetGroundTruth serves the expected outcomes for the bundled sample alerts.
func (h *APIHandlers) GetGroundTruth(c fiber.Ctx) error {
	return c.JSON(h.groundTruth)
}

// GetSampleAlerts serves the bundled demo alerts.
func (h *APIHandlers) GetSampleAlerts(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"total":  len(h.samples.Alerts),
		"alerts": h.samples.Alerts,
	})
}

// UploadAndRun validates an uploaded alerts document against the upload
// schema and submits everything in it. The document can arrive as a multipart
// "file" field or as the raw request body.
func (h *APIHandlers) UploadAndRun(c fiber.Ctx) error {
	payload, err := h.uploadPayload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return badRequest(c, "Document is not valid JSON: "+err.Error())
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return badRequest(c, "Document failed schema validation: "+strings.Join(details, "; "))
	}

	var doc alertsFile
	if err := json.Unmarshal(payload, &doc); err != nil {
		return badRequest(c, "Invalid alerts document: "+err.Error())
	}

	summaries, err := h.alerts.SubmitBatch(c.Context(), doc.Alerts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(h.batchResponse(summaries))
}

func (h *APIHandlers) uploadPayload(c fiber.Ctx) ([]byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if body := c.Body(); len(body) > 0 {
			return body, nil
		}

		return nil, fmt.Errorf("missing upload: provide a \"file\" field or a JSON body")
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	return payload, nil
}

// ClearWorkflows wipes all workflow history and resets the metrics.
func (h *APIHandlers) ClearWorkflows(c fiber.Ctx) error {
	cleared := h.alerts.Clear()

	return c.JSON(ClearResponse{
		Cleared: cleared,
		Message: "All workflows cleared successfully",
	})
}
