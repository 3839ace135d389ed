package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/leadgate-ai/leadgate/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// leadItem is the DynamoDB shape of a lead. The nested documents are stored
// as JSON blobs so the audit trail round-trips byte-for-byte.
type leadItem struct {
	ID              string `dynamodbav:"id"`
	Version         int64  `dynamodbav:"version"`
	Submission      string `dynamodbav:"submission"`
	Result          string `dynamodbav:"classificationResult,omitempty"`
	Email           string `dynamodbav:"email,omitempty"`
	Status          string `dynamodbav:"status"`
	ReceivedAt      string `dynamodbav:"receivedAt"`
	SentAt          string `dynamodbav:"sentAt,omitempty"`
	SentBy          string `dynamodbav:"sentBy,omitempty"`
	Classifications string `dynamodbav:"classifications"`
	Reroute         string `dynamodbav:"reroute,omitempty"`
	EvalResults     string `dynamodbav:"evalResults,omitempty"`
	CreatedAt       string `dynamodbav:"createdAt"`
}

// DynamoRepository persists leads to DynamoDB using conditional writes for
// the optimistic-concurrency contract.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided client.
func NewDynamoRepository(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("leads: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("leads: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRepository{client: client, tableName: tableName, logger: logger}
}

// Create inserts a lead, refusing to overwrite an existing ID.
func (r *DynamoRepository) Create(ctx context.Context, lead *Lead) error {
	item, err := encodeLeadItem(lead)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrLeadExists
		}
		return fmt.Errorf("leads: failed to persist lead: %w", err)
	}
	return nil
}

// GetByID fetches a lead by ID.
func (r *DynamoRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("leads: failed to fetch lead: %w", err)
	}
	if out.Item == nil {
		return nil, ErrLeadNotFound
	}
	return decodeLeadItem(out.Item)
}

// Update replaces the stored lead only if its version has not moved since
// the caller read it.
func (r *DynamoRepository) Update(ctx context.Context, lead *Lead) error {
	next := *lead
	next.Version = lead.Version + 1
	item, err := encodeLeadItem(&next)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("#version = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", lead.Version)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrVersionConflict
		}
		return fmt.Errorf("leads: failed to update lead: %w", err)
	}
	lead.Version = next.Version
	return nil
}

// ListByStatus scans for leads in the given status, oldest first.
func (r *DynamoRepository) ListByStatus(ctx context.Context, status LeadStatus, limit int) ([]*Lead, error) {
	leads, err := r.scan(ctx,
		"#status = :status",
		map[string]string{"#status": "status"},
		map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
	)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}

// ListByDateRange scans for leads created in [start, end), oldest first.
func (r *DynamoRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]*Lead, error) {
	return r.scan(ctx,
		"createdAt >= :start AND createdAt < :end",
		nil,
		map[string]types.AttributeValue{
			":start": &types.AttributeValueMemberS{Value: start.UTC().Format(time.RFC3339Nano)},
			":end":   &types.AttributeValueMemberS{Value: end.UTC().Format(time.RFC3339Nano)},
		},
	)
}

func (r *DynamoRepository) scan(ctx context.Context, filter string, names map[string]string, values map[string]types.AttributeValue) ([]*Lead, error) {
	var (
		out     []*Lead
		lastKey map[string]types.AttributeValue
	)
	for {
		resp, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(r.tableName),
			FilterExpression:          aws.String(filter),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		for _, item := range resp.Items {
			lead, err := decodeLeadItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, lead)
		}
		if resp.LastEvaluatedKey == nil {
			break
		}
		lastKey = resp.LastEvaluatedKey
	}

	sortLeadsByCreatedAt(out)
	return out, nil
}

func sortLeadsByCreatedAt(leads []*Lead) {
	for i := 1; i < len(leads); i++ {
		for j := i; j > 0 && leads[j].CreatedAt.Before(leads[j-1].CreatedAt); j-- {
			leads[j], leads[j-1] = leads[j-1], leads[j]
		}
	}
}

func encodeLeadItem(lead *Lead) (map[string]types.AttributeValue, error) {
	submission, err := json.Marshal(lead.Submission)
	if err != nil {
		return nil, fmt.Errorf("leads: encode submission: %w", err)
	}
	classifications, err := json.Marshal(lead.Classifications)
	if err != nil {
		return nil, fmt.Errorf("leads: encode classifications: %w", err)
	}

	item := leadItem{
		ID:              lead.ID,
		Version:         lead.Version,
		Submission:      string(submission),
		Status:          string(lead.Status.Status),
		ReceivedAt:      lead.Status.ReceivedAt.UTC().Format(time.RFC3339Nano),
		SentBy:          lead.Status.SentBy,
		Classifications: string(classifications),
		EvalResults:     string(lead.EvalResults),
		CreatedAt:       lead.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if lead.Status.SentAt != nil {
		item.SentAt = lead.Status.SentAt.UTC().Format(time.RFC3339Nano)
	}
	if lead.ClassificationResult != nil {
		data, err := json.Marshal(lead.ClassificationResult)
		if err != nil {
			return nil, fmt.Errorf("leads: encode classification result: %w", err)
		}
		item.Result = string(data)
	}
	if lead.Email != nil {
		data, err := json.Marshal(lead.Email)
		if err != nil {
			return nil, fmt.Errorf("leads: encode email: %w", err)
		}
		item.Email = string(data)
	}
	if lead.Reroute != nil {
		data, err := json.Marshal(lead.Reroute)
		if err != nil {
			return nil, fmt.Errorf("leads: encode reroute: %w", err)
		}
		item.Reroute = string(data)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("leads: failed to marshal lead: %w", err)
	}
	return av, nil
}

func decodeLeadItem(av map[string]types.AttributeValue) (*Lead, error) {
	var item leadItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("leads: failed to decode lead: %w", err)
	}

	lead := Lead{
		ID:      item.ID,
		Version: item.Version,
		Status: Status{
			Status: LeadStatus(item.Status),
			SentBy: item.SentBy,
		},
		Classifications: ClassificationLog{},
	}
	var err error
	if lead.Status.ReceivedAt, err = time.Parse(time.RFC3339Nano, item.ReceivedAt); err != nil {
		return nil, fmt.Errorf("leads: decode receivedAt: %w", err)
	}
	if lead.CreatedAt, err = time.Parse(time.RFC3339Nano, item.CreatedAt); err != nil {
		return nil, fmt.Errorf("leads: decode createdAt: %w", err)
	}
	if item.SentAt != "" {
		sentAt, err := time.Parse(time.RFC3339Nano, item.SentAt)
		if err != nil {
			return nil, fmt.Errorf("leads: decode sentAt: %w", err)
		}
		lead.Status.SentAt = &sentAt
	}
	if err := json.Unmarshal([]byte(item.Submission), &lead.Submission); err != nil {
		return nil, fmt.Errorf("leads: decode submission: %w", err)
	}
	if err := json.Unmarshal([]byte(item.Classifications), &lead.Classifications); err != nil {
		return nil, fmt.Errorf("leads: decode classifications: %w", err)
	}
	if item.Result != "" {
		lead.ClassificationResult = &ClassificationResult{}
		if err := json.Unmarshal([]byte(item.Result), lead.ClassificationResult); err != nil {
			return nil, fmt.Errorf("leads: decode classification result: %w", err)
		}
	}
	if item.Email != "" {
		lead.Email = &EmailDraft{}
		if err := json.Unmarshal([]byte(item.Email), lead.Email); err != nil {
			return nil, fmt.Errorf("leads: decode email: %w", err)
		}
	}
	if item.Reroute != "" {
		lead.Reroute = &RerouteRecord{}
		if err := json.Unmarshal([]byte(item.Reroute), lead.Reroute); err != nil {
			return nil, fmt.Errorf("leads: decode reroute: %w", err)
		}
	}
	if item.EvalResults != "" {
		lead.EvalResults = json.RawMessage(item.EvalResults)
	}
	return &lead, nil
}
