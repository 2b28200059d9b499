package destinations

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"notifyrelay/internal/types"
)

// nopLogger satisfies types.Logger for tests.
type nopLogger struct{}

func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) With(...any) types.Logger { return nopLogger{} }

// mockSQS records SendMessage calls.
type mockSQS struct {
	calls     []*sqs.SendMessageInput
	returnErr error
}

func (m *mockSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &sqs.SendMessageOutput{}, nil
}

// mockEventBridge records PutEvents calls. A non-empty entryCode fails the
// single entry with that code.
type mockEventBridge struct {
	calls     []*eventbridge.PutEventsInput
	returnErr error
	entryCode string
}

func (m *mockEventBridge) PutEvents(_ context.Context, params *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	if m.entryCode != "" {
		return &eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []ebtypes.PutEventsResultEntry{
				{ErrorCode: aws.String(m.entryCode), ErrorMessage: aws.String("entry failed")},
			},
		}, nil
	}
	return &eventbridge.PutEventsOutput{Entries: []ebtypes.PutEventsResultEntry{{EventId: aws.String("ev-1")}}}, nil
}

func TestSQSDestination_Send(t *testing.T) {
	mock := &mockSQS{}
	d := NewSQSDestination(mock, nopLogger{})

	err := d.Send(context.Background(), "https://sqs.us-east-1.amazonaws.com/123/dest", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 SendMessage call, got %d", len(mock.calls))
	}
	if *mock.calls[0].MessageBody != `{"a":1}` {
		t.Errorf("unexpected body: %s", *mock.calls[0].MessageBody)
	}
}

func TestSQSDestination_SendErrorIsTransient(t *testing.T) {
	mock := &mockSQS{returnErr: errors.New("connection reset")}
	d := NewSQSDestination(mock, nopLogger{})

	err := d.Send(context.Background(), "https://sqs.us-east-1.amazonaws.com/123/dest", []byte("{}"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !types.IsTransient(err) {
		t.Error("SDK failure should be transient")
	}
}

func TestEventBridgeDestination_ThrottledEntryIsTransient(t *testing.T) {
	mock := &mockEventBridge{entryCode: "ThrottlingException"}
	d := NewEventBridgeDestination(mock, nopLogger{})

	err := d.Send(context.Background(), "relay-bus", "notifyrelay", []byte("{}"))
	if err == nil {
		t.Fatal("expected error for failed entry")
	}
	if !types.IsTransient(err) {
		t.Error("throttled entry should be transient")
	}
}

func TestEventBridgeDestination_RejectedEntryIsPermanent(t *testing.T) {
	mock := &mockEventBridge{entryCode: "MalformedDetail"}
	d := NewEventBridgeDestination(mock, nopLogger{})

	err := d.Send(context.Background(), "relay-bus", "notifyrelay", []byte("{}"))
	if err == nil {
		t.Fatal("expected error for failed entry")
	}
	if !types.IsPermanent(err) {
		t.Error("non-throttling entry rejection should be permanent")
	}
}

func TestEventBridgeDestination_Send(t *testing.T) {
	mock := &mockEventBridge{}
	d := NewEventBridgeDestination(mock, nopLogger{})

	if err := d.Send(context.Background(), "relay-bus", "notifyrelay", []byte(`{"b":2}`)); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	entry := mock.calls[0].Entries[0]
	if *entry.EventBusName != "relay-bus" {
		t.Errorf("unexpected bus: %s", *entry.EventBusName)
	}
	if *entry.Detail != `{"b":2}` {
		t.Errorf("unexpected detail: %s", *entry.Detail)
	}
}

func TestWebhookDestination_StatusTaxonomy(t *testing.T) {
	cases := []struct {
		name          string
		status        int
		wantErr       bool
		wantTransient bool
	}{
		{"200 ok", http.StatusOK, false, false},
		{"201 created", http.StatusCreated, false, false},
		{"429 throttled", http.StatusTooManyRequests, true, true},
		{"400 bad request", http.StatusBadRequest, true, false},
		{"404 gone", http.StatusNotFound, true, false},
		{"500 server error", http.StatusInternalServerError, true, true},
		{"503 unavailable", http.StatusServiceUnavailable, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("missing json content type, got %q", ct)
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			d := NewWebhookDestinationWithClient(srv.Client(), "NotifyRelay-Test/1.0", nopLogger{})
			err := d.Send(context.Background(), types.WebhookTarget{URL: srv.URL}, []byte("{}"))

			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr && types.IsTransient(err) != tc.wantTransient {
				t.Errorf("transient=%v, want %v (err: %v)", types.IsTransient(err), tc.wantTransient, err)
			}
		})
	}
}

func TestWebhookDestination_AuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Auth-Token")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewWebhookDestinationWithClient(srv.Client(), "", nopLogger{})
	target := types.WebhookTarget{
		URL:             srv.URL,
		AuthHeaderName:  "X-Auth-Token",
		AuthHeaderValue: "secret-token",
	}
	if err := d.Send(context.Background(), target, []byte("{}")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if gotAuth != "secret-token" {
		t.Errorf("auth header not sent, got %q", gotAuth)
	}
}

func TestWebhookDestination_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	d := NewWebhookDestinationWithClient(http.DefaultClient, "", nopLogger{})
	err := d.Send(context.Background(), types.WebhookTarget{URL: srv.URL}, []byte("{}"))
	if err == nil {
		t.Fatal("expected network error")
	}
	if !types.IsTransient(err) {
		t.Error("network error should be transient")
	}
}

func TestDispatcher_RoutesByKind(t *testing.T) {
	sqsMock := &mockSQS{}
	ebMock := &mockEventBridge{}
	dp := NewDispatcher(nopLogger{},
		WithSQS(NewSQSDestination(sqsMock, nopLogger{})),
		WithEventBridge(NewEventBridgeDestination(ebMock, nopLogger{})),
	)

	err := dp.Send(context.Background(), types.DeliveryTarget{
		Kind:     types.TargetSQS,
		QueueURL: "https://sqs.us-east-1.amazonaws.com/123/dest",
	}, []byte("{}"))
	if err != nil {
		t.Fatalf("SQS route error: %v", err)
	}

	err = dp.Send(context.Background(), types.DeliveryTarget{
		Kind:         types.TargetEventBridge,
		EventBusName: "relay-bus",
		EventSource:  "notifyrelay",
	}, []byte("{}"))
	if err != nil {
		t.Fatalf("EventBridge route error: %v", err)
	}

	if len(sqsMock.calls) != 1 || len(ebMock.calls) != 1 {
		t.Errorf("expected one call per transport, got sqs=%d eb=%d", len(sqsMock.calls), len(ebMock.calls))
	}
}

func TestDispatcher_UnconfiguredKindIsPermanent(t *testing.T) {
	dp := NewDispatcher(nopLogger{}) // no senders wired

	err := dp.Send(context.Background(), types.DeliveryTarget{
		Kind:          types.TargetPubSub,
		PubSubTopicID: "topic",
	}, []byte("{}"))
	if err == nil {
		t.Fatal("expected error for unconfigured kind")
	}
	if !types.IsPermanent(err) {
		t.Error("unconfigured destination kind should be permanent, not retried forever")
	}
}

func TestDispatcher_RepeatSendIsIndependent(t *testing.T) {
	// At-least-once contract: dispatching the same payload twice produces
	// two independent successful sends, never a duplicate-detection error.
	sqsMock := &mockSQS{}
	dp := NewDispatcher(nopLogger{}, WithSQS(NewSQSDestination(sqsMock, nopLogger{})))
	target := types.DeliveryTarget{Kind: types.TargetSQS, QueueURL: "https://sqs.us-east-1.amazonaws.com/123/dest"}
	payload := []byte(`{"notificationType":"ANY_OFFER_CHANGED"}`)

	for i := 0; i < 2; i++ {
		if err := dp.Send(context.Background(), target, payload); err != nil {
			t.Fatalf("send %d failed: %v", i+1, err)
		}
	}
	if len(sqsMock.calls) != 2 {
		t.Fatalf("expected 2 independent sends, got %d", len(sqsMock.calls))
	}
}
