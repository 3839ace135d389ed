package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/leadgate-ai/leadgate/internal/leads"
)

type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func archivedLead(t *testing.T) *leads.Lead {
	t.Helper()
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	l := leads.New("l-77", leads.Submission{
		Name:    "Dana Reyes",
		Email:   "dana@acme.io",
		Company: "Acme",
		Message: "Reach me at dana@acme.io or 555-201-3344.",
	}, now)
	res := leads.ClassificationResult{Classification: leads.ClassificationLowQuality, Confidence: 0.91, Reasoning: "r"}
	threshold := 0.85
	draw := 0.2
	if err := l.MarkAutoDone(res, &threshold, &draw, leads.SentByBot, now); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	return l
}

func TestArchiveLead_WritesSnapshotAndManifest(t *testing.T) {
	fake := newFakeS3()
	store := NewStore(fake, "leadgate-audit", nil)

	if err := store.ArchiveLead(context.Background(), archivedLead(t), "decision"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	var snapshotKey, manifestKey string
	for key := range fake.objects {
		switch {
		case strings.Contains(key, "by-date"):
			snapshotKey = key
		case strings.Contains(key, "manifests"):
			manifestKey = key
		}
	}
	if snapshotKey == "" || manifestKey == "" {
		t.Fatalf("objects = %v", fake.objects)
	}
	if !strings.Contains(snapshotKey, "l-77-decision.json") {
		t.Fatalf("snapshot key = %s", snapshotKey)
	}

	var record LeadRecord
	if err := json.Unmarshal(fake.objects[snapshotKey], &record); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if record.TerminalState != string(leads.TerminalSentGeneric) {
		t.Fatalf("terminal_state = %s", record.TerminalState)
	}
	if record.Lead.Submission.Email == "dana@acme.io" {
		t.Fatal("archived email was not hashed")
	}
	if strings.Contains(record.Lead.Submission.Message, "dana@acme.io") {
		t.Fatal("archived message still contains an email address")
	}

	var entry ManifestEntry
	line := strings.TrimSpace(string(fake.objects[manifestKey]))
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if entry.LeadID != "l-77" || entry.S3Key != snapshotKey {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestArchiveLead_ManifestAccumulates(t *testing.T) {
	fake := newFakeS3()
	store := NewStore(fake, "leadgate-audit", nil)
	ctx := context.Background()

	lead := archivedLead(t)
	if err := store.ArchiveLead(ctx, lead, "decision"); err != nil {
		t.Fatalf("first archive: %v", err)
	}
	if err := store.ArchiveLead(ctx, lead, "reroute"); err != nil {
		t.Fatalf("second archive: %v", err)
	}

	for key, data := range fake.objects {
		if strings.Contains(key, "manifests") {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) != 2 {
				t.Fatalf("manifest has %d lines, want 2", len(lines))
			}
			return
		}
	}
	t.Fatal("no manifest written")
}

func TestArchiveLead_DisabledIsNoOp(t *testing.T) {
	store := NewStore(nil, "", nil)
	if store.Enabled() {
		t.Fatal("store should be disabled without bucket and client")
	}
	if err := store.ArchiveLead(context.Background(), archivedLead(t), "decision"); err != nil {
		t.Fatalf("archive on disabled store: %v", err)
	}
}

func TestScrubPII(t *testing.T) {
	in := "Contact dana@acme.io or call (555) 201-3344 today"
	out := ScrubPII(in)
	if strings.Contains(out, "acme.io") || strings.Contains(out, "201-3344") {
		t.Fatalf("scrubbed text still leaks: %q", out)
	}
	if !strings.Contains(out, "[EMAIL]") || !strings.Contains(out, "[PHONE]") {
		t.Fatalf("placeholders missing: %q", out)
	}
}
