// Package main provides a small client for submitting alerts to a running
// argus API and optionally following their workflows live.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/socworks/argus/pkg/log"
	"github.com/socworks/argus/pkg/models"
)

const submitTimeout = 30 * time.Second

type alertsFile struct {
	Alerts []models.Alert `json:"alerts"`
}

type submitted struct {
	WorkflowID string `json:"workflow_id"`
	AlertID    string `json:"alert_id"`
	Status     string `json:"status"`
}

type batchResponse struct {
	Submitted int         `json:"submitted"`
	Workflows []submitted `json:"workflows"`
}

func main() {
	logger := log.WithModule("submit")

	cmd := &cli.Command{
		Name:  "argus-submit",
		Usage: "Submit alerts from a JSON file to a running argus API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to an alerts JSON file ({\"alerts\": [...]})",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Base URL of the argus API",
				Value:   "http://localhost:8000",
				Sources: cli.EnvVars("ARGUS_API_URL"),
			},
			&cli.BoolFlag{
				Name:  "follow",
				Usage: "Stream each workflow's events until it finishes",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			alerts, err := loadAlerts(command.String("file"))
			if err != nil {
				return err
			}

			apiURL := command.String("api-url")

			resp, err := submitBatch(ctx, apiURL, alerts)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Batch accepted", "submitted", resp.Submitted)

			for _, wf := range resp.Workflows {
				fmt.Printf("%s\t%s\t%s\n", wf.WorkflowID, wf.AlertID, wf.Status)
			}

			if !command.Bool("follow") {
				return nil
			}

			for _, wf := range resp.Workflows {
				if err := follow(ctx, apiURL, wf.WorkflowID); err != nil {
					logger.WarnContext(ctx, "Stream ended with error",
						"workflow_id", wf.WorkflowID, "error", err)
				}
			}

			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("argus-submit exited with error", "error", err)
		os.Exit(1)
	}
}

func loadAlerts(path string) ([]models.Alert, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alerts file: %w", err)
	}

	var doc alertsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing alerts file: %w", err)
	}

	if len(doc.Alerts) == 0 {
		return nil, fmt.Errorf("alerts file %s contains no alerts", path)
	}

	return doc.Alerts, nil
}

func submitBatch(ctx context.Context, apiURL string, alerts []models.Alert) (*batchResponse, error) {
	body, err := json.Marshal(map[string]any{"alerts": alerts})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		apiURL+"/api/alerts/batch", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

		return nil, fmt.Errorf("batch rejected with status %d: %s", resp.StatusCode, payload)
	}

	var parsed batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding batch response: %w", err)
	}

	return &parsed, nil
}

// follow prints the workflow's server-sent events until the stream closes,
// which happens after the workflow's final event.
func follow(ctx context.Context, apiURL, workflowID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		apiURL+"/api/alerts/stream/"+workflowID, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream rejected with status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		fmt.Printf("[%s] %s\n", workflowID, line)
	}

	return scanner.Err()
}
