// Lambda entrypoint for website form intake. It validates the submission at
// the edge and enqueues it for the worker fleet, so lead capture stays up
// even when the API tier is being redeployed.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/leadgate-ai/leadgate/cmd/mainconfig"
	appconfig "github.com/leadgate-ai/leadgate/internal/config"
	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/internal/queue"
	"github.com/leadgate-ai/leadgate/internal/triage"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.IntakeQueueURL == "" {
		panic("INTAKE_QUEUE_URL is required")
	}

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		panic(err)
	}

	publisher := triage.NewPublisher(queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.IntakeQueueURL))
	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, publisher, logger, evt)
	})
}

func handle(ctx context.Context, publisher *triage.Publisher, logger *logging.Logger, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if logger == nil {
		logger = logging.Default()
	}
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	}
	if method != http.MethodPost || path != "/leads" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}, nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "invalid body"}), nil
	}

	var sub leads.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "invalid json"}), nil
	}

	jobID, err := publisher.Enqueue(ctx, sub)
	if err != nil {
		if errors.Is(err, leads.ErrInvalidName) || errors.Is(err, leads.ErrMissingContact) {
			return jsonResponse(http.StatusBadRequest, map[string]string{"error": err.Error()}), nil
		}
		logger.Error("enqueue lead failed", "error", err)
		return jsonResponse(http.StatusServiceUnavailable, map[string]string{"error": "failed to accept submission"}), nil
	}

	return jsonResponse(http.StatusAccepted, map[string]string{"job_id": jobID, "status": "queued"}), nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

func jsonResponse(status int, payload any) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(payload)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
