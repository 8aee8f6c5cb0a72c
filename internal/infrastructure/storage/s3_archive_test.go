package storage

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sentEntry(t *testing.T, payload string, processedAt time.Time) *shared.OutboxEntry {
	t.Helper()
	return &shared.OutboxEntry{
		ID:            uuid.New(),
		EventID:       uuid.New(),
		EventType:     "AllocationPurchased",
		AggregateID:   "escrow-1",
		AggregateType: "PurchaseEscrow",
		Payload:       []byte(payload),
		Status:        shared.OutboxStatusSent,
		CreatedAt:     processedAt.Add(-time.Second),
		ProcessedAt:   &processedAt,
	}
}

type recordedRequest struct {
	method string
	path   string
	body   []byte
}

// fakeS3 answers path-style S3 calls and records them
type fakeS3 struct {
	mu           sync.Mutex
	requests     []recordedRequest
	bucketExists bool
	failPuts     bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
	exists, failPuts := f.bucketExists, f.failPuts
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodHead && !exists:
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut && failPuts:
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeS3) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestArchive(t *testing.T, fake *fakeS3) *S3EventArchive {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	archive, err := NewS3EventArchive(context.Background(), &config.ArchiveConfig{
		Endpoint:     srv.URL,
		Region:       "us-east-1",
		Bucket:       "events",
		Prefix:       "/outbox/",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		UsePathStyle: true,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return archive
}

// ============================================================================
// Unit Tests (no network)
// ============================================================================

func TestNewS3EventArchive_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3EventArchive(ctx, nil)
		assert.ErrorContains(t, err, "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3EventArchive(ctx, &config.ArchiveConfig{})
		assert.ErrorContains(t, err, "bucket is required")
	})

	t.Run("half a key pair returns error", func(t *testing.T) {
		_, err := NewS3EventArchive(ctx, &config.ArchiveConfig{Bucket: "events", AccessKey: "only"})
		assert.ErrorContains(t, err, "set together")
	})

	t.Run("trims the prefix", func(t *testing.T) {
		archive, err := NewS3EventArchive(ctx, &config.ArchiveConfig{
			Bucket: "events", Prefix: "/outbox/", AccessKey: "k", SecretKey: "s",
		})
		require.NoError(t, err)
		assert.Equal(t, "outbox", archive.prefix)
		assert.Equal(t, "events", archive.Bucket())
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"", true, ""},
		{"minio:9000", false, "http://minio:9000"},
		{"minio:9000", true, "https://minio:9000"},
		{"http://localhost:9000", true, "http://localhost:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := normalizeEndpoint(tt.endpoint, tt.useSSL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeEntries(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	first := sentEntry(t, `{"allocation":20}`, at)
	second := sentEntry(t, `{"allocation":5}`, at.Add(time.Minute))

	data, err := EncodeEntries([]*shared.OutboxEntry{first, second})
	require.NoError(t, err)

	var lines []archivedEvent
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var ev archivedEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		lines = append(lines, ev)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, first.EventID.String(), lines[0].EventID)
	assert.Equal(t, "AllocationPurchased", lines[0].EventType)
	assert.JSONEq(t, `{"allocation":20}`, string(lines[0].Payload))
	assert.JSONEq(t, `{"allocation":5}`, string(lines[1].Payload))
	require.NotNil(t, lines[1].ProcessedAt)
	assert.True(t, at.Add(time.Minute).Equal(*lines[1].ProcessedAt))

	t.Run("rejects a corrupt payload", func(t *testing.T) {
		_, err := EncodeEntries([]*shared.OutboxEntry{sentEntry(t, "not json", at)})
		assert.ErrorContains(t, err, "non-JSON payload")
	})
}

func TestS3EventArchive_ObjectKey(t *testing.T) {
	archive := &S3EventArchive{prefix: "outbox"}
	at := time.Date(2026, 10, 1, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	entry := sentEntry(t, `{}`, at)

	key := archive.ObjectKey(entry)
	assert.Regexp(t, `^outbox/2026/10/02/\d+-`+entry.EventID.String()+`\.jsonl$`, key)

	t.Run("falls back to creation time", func(t *testing.T) {
		entry.ProcessedAt = nil
		assert.Contains(t, archive.ObjectKey(entry), "outbox/2026/10/02/")
	})

	t.Run("stable for the same batch", func(t *testing.T) {
		assert.Equal(t, archive.ObjectKey(entry), archive.ObjectKey(entry))
	})
}

// ============================================================================
// Fake endpoint tests
// ============================================================================

func TestS3EventArchive_Archive(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	t.Run("uploads one object per batch", func(t *testing.T) {
		fake := &fakeS3{bucketExists: true}
		archive := newTestArchive(t, fake)
		entries := []*shared.OutboxEntry{sentEntry(t, `{"n":1}`, at), sentEntry(t, `{"n":2}`, at)}

		require.NoError(t, archive.Archive(ctx, entries))

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodPut, reqs[0].method)
		assert.Equal(t, "/events/"+archive.ObjectKey(entries[0]), reqs[0].path)
		assert.Contains(t, string(reqs[0].body), entries[0].EventID.String())
		assert.Contains(t, string(reqs[0].body), entries[1].EventID.String())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		fake := &fakeS3{bucketExists: true}
		require.NoError(t, newTestArchive(t, fake).Archive(ctx, nil))
		assert.Empty(t, fake.recorded())
	})

	t.Run("upload failure is returned", func(t *testing.T) {
		fake := &fakeS3{bucketExists: true, failPuts: true}
		err := newTestArchive(t, fake).Archive(ctx, []*shared.OutboxEntry{sentEntry(t, `{}`, at)})
		assert.ErrorContains(t, err, "failed to upload archive")
	})
}

func TestS3EventArchive_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("existing bucket", func(t *testing.T) {
		fake := &fakeS3{bucketExists: true}
		require.NoError(t, newTestArchive(t, fake).EnsureBucket(ctx))

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodHead, reqs[0].method)
	})

	t.Run("creates a missing bucket", func(t *testing.T) {
		fake := &fakeS3{}
		require.NoError(t, newTestArchive(t, fake).EnsureBucket(ctx))

		reqs := fake.recorded()
		require.Len(t, reqs, 2)
		assert.Equal(t, http.MethodPut, reqs[1].method)
		assert.Equal(t, "/events", strings.TrimSuffix(reqs[1].path, "/"))
	})
}
