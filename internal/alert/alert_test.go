package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

func ptr(f float64) *float64 { return &f }

func testAlert() types.AlertEvent {
	return types.AlertEvent{
		ID:        "01J0000000000000000000000A",
		RuleID:    "low-oil",
		RuleName:  "Low oil pressure",
		Category:  "OILP",
		Severity:  types.SeverityCritical,
		OnsetTime: 12,
		ClearTime: ptr(20.5),
		Message:   "Critical: Low oil pressure, 12.0s→20.5s",
	}
}

func TestFormat(t *testing.T) {
	rule := types.Rule{ID: "low-oil", Name: "Low oil pressure", Description: "OILP below 10 psi"}

	tests := []struct {
		name  string
		alert types.AlertEvent
		rule  types.Rule
		want  string
	}{
		{
			name:  "closed",
			alert: types.AlertEvent{Severity: types.SeverityCritical, OnsetTime: 12, ClearTime: ptr(20.5)},
			rule:  rule,
			want:  "Critical: Low oil pressure — OILP below 10 psi, 12.0s→20.5s",
		},
		{
			name:  "ongoing",
			alert: types.AlertEvent{Severity: types.SeverityWarning, OnsetTime: 3.04},
			rule:  rule,
			want:  "Warning: Low oil pressure — OILP below 10 psi, 3.0s→ongoing",
		},
		{
			name:  "no description falls back to alert name",
			alert: types.AlertEvent{RuleName: "Vbat low", Severity: types.SeverityWarning, OnsetTime: 0},
			want:  "Warning: Vbat low, 0.0s→ongoing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.alert, tt.rule))
		})
	}
}

func TestFormatAll(t *testing.T) {
	alerts := []types.AlertEvent{
		{RuleID: "a", Severity: types.SeverityWarning, OnsetTime: 1},
		{RuleID: "b", RuleName: "B", Severity: types.SeverityCritical, OnsetTime: 2, ClearTime: ptr(3)},
	}
	rules := []types.Rule{{ID: "a", Name: "A", Description: "desc"}}

	got := FormatAll(alerts, rules)
	require.Len(t, got, 2)
	assert.Equal(t, "Warning: A — desc, 1.0s→ongoing", got[0].Message)
	assert.Equal(t, "Critical: B, 2.0s→3.0s", got[1].Message)
	assert.Empty(t, alerts[0].Message)
}

func TestConsoleSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSinkTo(&buf)
	assert.Equal(t, "console", sink.Name())

	ctx := context.Background()
	for _, sev := range []types.Severity{types.SeverityCritical, types.SeverityWarning, ""} {
		a := testAlert()
		a.Severity = sev
		require.NoError(t, sink.Send(ctx, a))
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[CRIT]")
	assert.Contains(t, lines[1], "[WARN]")
	assert.Contains(t, lines[2], "[low-oil] Critical: Low oil pressure")
}

func TestWebhookSink_Send_Success(t *testing.T) {
	var received []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sink := NewWebhookSink(ts.URL)
	a := testAlert()
	require.NoError(t, sink.Send(context.Background(), a))

	var got types.AlertEvent
	require.NoError(t, json.Unmarshal(received, &got))
	assert.Equal(t, a, got)
}

func TestWebhookSink_Send_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := NewWebhookSink(ts.URL).Send(context.Background(), testAlert())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFileSink_Send(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	assert.Equal(t, "file", sink.Name())

	open := testAlert()
	open.ClearTime = nil
	require.NoError(t, sink.Send(context.Background(), open))
	require.NoError(t, sink.Send(context.Background(), testAlert()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"clearTime":null`)
	assert.Contains(t, lines[0], `"status":"open"`)
	assert.NotContains(t, lines[0], "durationSec")

	var got alertLine
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, testAlert(), got.AlertEvent)
	assert.Equal(t, "cleared", got.Status)
	require.NotNil(t, got.Duration)
	assert.InDelta(t, *testAlert().ClearTime-testAlert().OnsetTime, *got.Duration, 1e-9)
	assert.False(t, got.LoggedAt.IsZero())
}

func TestFileSink_Unwritable(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "alerts.jsonl"))
	assert.Error(t, err)
}

type mockEventBridge struct {
	inputs []*eventbridge.PutEventsInput
	failed int32
}

func (m *mockEventBridge) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.inputs = append(m.inputs, in)
	out := &eventbridge.PutEventsOutput{FailedEntryCount: m.failed}
	if m.failed > 0 {
		out.Entries = []ebtypes.PutEventsResultEntry{{ErrorCode: aws.String("ThrottlingException"), ErrorMessage: aws.String("slow down")}}
	}
	return out, nil
}

func TestEventBridgeSink_Send(t *testing.T) {
	mock := &mockEventBridge{}
	sink, err := NewEventBridgeSink("fleet-alerts", "", WithEventBridgeClient(mock))
	require.NoError(t, err)
	assert.Equal(t, "eventbridge", sink.Name())

	require.NoError(t, sink.Send(context.Background(), testAlert()))
	require.Len(t, mock.inputs, 1)
	entry := mock.inputs[0].Entries[0]
	assert.Equal(t, "fleet-alerts", aws.ToString(entry.EventBusName))
	assert.Equal(t, eventSource, aws.ToString(entry.Source))
	assert.Equal(t, []string{"low-oil"}, entry.Resources)

	var got types.AlertEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &got))
	assert.Equal(t, testAlert(), got)

	mock.failed = 1
	err = sink.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ThrottlingException")
}

func TestEventBridgeSink_EmptyBus(t *testing.T) {
	_, err := NewEventBridgeSink("", "")
	assert.ErrorContains(t, err, "bus name required")
}

type mockSQS struct {
	inputs []*sqs.SendMessageInput
}

func (m *mockSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSSink_Send(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		group string
	}{
		{"standard", "https://sqs.us-east-1.amazonaws.com/123456789012/alerts", ""},
		{"fifo", "https://sqs.us-east-1.amazonaws.com/123456789012/alerts.fifo", "low-oil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockSQS{}
			sink, err := NewSQSSink(tt.url, "", WithSQSClient(mock))
			require.NoError(t, err)

			require.NoError(t, sink.Send(context.Background(), testAlert()))
			require.Len(t, mock.inputs, 1)
			in := mock.inputs[0]
			assert.Equal(t, tt.url, aws.ToString(in.QueueUrl))
			assert.Equal(t, tt.group, aws.ToString(in.MessageGroupId))
			assert.Equal(t, "critical", aws.ToString(in.MessageAttributes["severity"].StringValue))
			if tt.group != "" {
				assert.Equal(t, testAlert().ID+"-closed", aws.ToString(in.MessageDeduplicationId))
			}
		})
	}
}

func TestSQSSink_EmptyQueue(t *testing.T) {
	_, err := NewSQSSink("", "")
	assert.ErrorContains(t, err, "queue URL required")
}

// errSink is a test sink that always returns an error.
type errSink struct{}

func (s *errSink) Send(_ context.Context, _ types.AlertEvent) error { return fmt.Errorf("sink error") }
func (s *errSink) Name() string                                     { return "error-sink" }

// recordSink records all alerts sent to it.
type recordSink struct {
	alerts []types.AlertEvent
}

func (s *recordSink) Send(_ context.Context, a types.AlertEvent) error {
	s.alerts = append(s.alerts, a)
	return nil
}
func (s *recordSink) Name() string { return "record-sink" }

func TestDispatcher_MultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	d := NewDispatcherWithSinks(nil, s1, s2)
	assert.Equal(t, []string{"record-sink", "record-sink"}, d.Sinks())

	a := testAlert()
	require.NoError(t, d.Dispatch(context.Background(), a, a))

	assert.Len(t, s1.alerts, 2)
	assert.Len(t, s2.alerts, 2)
	assert.Equal(t, a.Message, s1.alerts[0].Message)
}

func TestDispatcher_SinkError_ContinuesOthers(t *testing.T) {
	recording := &recordSink{}
	d := NewDispatcherWithSinks(nil, &errSink{}, recording)

	err := d.Dispatch(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error-sink")

	// Even though the first sink failed, the second received the alert.
	assert.Len(t, recording.alerts, 1)
}

func TestNewDispatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	d, err := NewDispatcher([]types.AlertConfig{
		{Type: types.AlertConsole},
		{Type: types.AlertFile, Path: path},
		{Type: types.AlertWebhook, URL: "http://localhost:9"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"console", "file", "webhook"}, d.Sinks())

	tests := []struct {
		name string
		cfg  types.AlertConfig
		want string
	}{
		{"webhook without url", types.AlertConfig{Type: types.AlertWebhook}, "webhook URL required"},
		{"file without path", types.AlertConfig{Type: types.AlertFile}, "file path required"},
		{"unknown", types.AlertConfig{Type: "pager"}, `unknown alert type "pager"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDispatcher([]types.AlertConfig{tt.cfg}, nil)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
