// Package archive writes point-in-time snapshots of routed leads to S3.
// The archive is the durable audit trail behind the reroute and analytics
// flows; it is written after every terminal decision and never read on
// the hot path.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/leadgate-ai/leadgate/internal/leads"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LeadRecord is the archived form of a lead at the moment it reached a
// terminal disposition or was rerouted.
type LeadRecord struct {
	Lead          *leads.Lead `json:"lead"`
	TerminalState string      `json:"terminal_state,omitempty"`
	Event         string      `json:"event"`
	ArchivedAt    time.Time   `json:"archived_at"`
}

// ManifestEntry is one JSONL line in the monthly archive manifest.
type ManifestEntry struct {
	LeadID        string `json:"lead_id"`
	S3Key         string `json:"s3_key"`
	Event         string `json:"event"`
	TerminalState string `json:"terminal_state,omitempty"`
	Rerouted      bool   `json:"rerouted"`
	ArchivedAt    string `json:"archived_at"`
}

// Store archives lead records to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveLead writes a scrubbed snapshot of the lead as JSON to S3 and
// appends to the monthly manifest.
func (s *Store) ArchiveLead(ctx context.Context, lead *leads.Lead, event string) error {
	if !s.Enabled() {
		return nil
	}

	record := &LeadRecord{
		Lead:       ScrubLead(lead),
		Event:      event,
		ArchivedAt: time.Now().UTC(),
	}
	if terminal, ok := lead.TerminalState(); ok {
		record.TerminalState = string(terminal)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	now := record.ArchivedAt
	s3Key := fmt.Sprintf("leads/v1/by-date/%d/%02d/%02d/%s-%s.json",
		now.Year(), now.Month(), now.Day(), lead.ID, event)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("archived lead to S3",
		"lead_id", lead.ID,
		"s3_key", s3Key,
		"event", event,
		"terminal_state", record.TerminalState,
	)

	entry := ManifestEntry{
		LeadID:        lead.ID,
		S3Key:         s3Key,
		Event:         event,
		TerminalState: record.TerminalState,
		Rerouted:      lead.Reroute != nil,
		ArchivedAt:    now.Format(time.RFC3339),
	}

	if err := s.AppendManifest(ctx, entry); err != nil {
		// The snapshot itself is already durable.
		s.logger.Warn("failed to append manifest", "error", err, "lead_id", lead.ID)
	}

	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// Uses read-modify-write since S3 doesn't support append.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := time.Now().UTC()
	manifestKey := fmt.Sprintf("leads/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	if err != nil {
		s.logger.Debug("manifest not readable, starting fresh", "key", manifestKey, "error", err)
	} else {
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}

	return nil
}
