package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"

	"collabdocs/internal/events"
)

// captureProducer records every published payload in-memory.
type captureProducer struct {
	mu     sync.Mutex
	values [][]byte
}

func (p *captureProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	b, err := msg.Value.Encode()
	if err != nil {
		return 0, 0, err
	}
	p.mu.Lock()
	p.values = append(p.values, b)
	p.mu.Unlock()
	return 0, 0, nil
}

func (p *captureProducer) SendMessages(msgs []*sarama.ProducerMessage) error { return nil }
func (p *captureProducer) Close() error                                      { return nil }
func (p *captureProducer) TxnStatus() sarama.ProducerTxnStatusFlag           { return 0 }
func (p *captureProducer) IsTransactional() bool                             { return false }
func (p *captureProducer) BeginTxn() error                                   { return nil }
func (p *captureProducer) CommitTxn() error                                  { return nil }
func (p *captureProducer) AbortTxn() error                                   { return nil }
func (p *captureProducer) AddOffsetsToTxn(map[string][]*sarama.PartitionOffsetMetadata, string) error {
	return nil
}
func (p *captureProducer) AddMessageToTxn(*sarama.ConsumerMessage, string, *string) error {
	return nil
}

func (p *captureProducer) captured() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.values))
	copy(out, p.values)
	return out
}

func startRelayWithFirehose(t *testing.T) (*httptest.Server, *captureProducer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	producer := &captureProducer{}
	firehose := events.NewDispatcher(producer, "doc-deltas", nil, events.DispatcherOptions{
		QueueSize:   16,
		Workers:     1,
		MaxRetry:    0,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	})
	t.Cleanup(firehose.Close)

	hub := NewHub()
	manager := NewManager(hub, nil, firehose)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		uid, _ := strconv.ParseUint(c.Query("user"), 10, 64)
		c.Set("userId", uid)
		c.Set("username", "user-"+c.Query("user"))
		manager.WebSocketConnect(c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, producer
}

// Every relayed delta lands on the firehose carrying the sending user and a
// connection id, so two tabs of one user stay distinguishable downstream.
func TestFirehose_EventCarriesSenderAndConnID(t *testing.T) {
	srv, producer := startRelayWithFirehose(t)
	a := dialRelay(t, srv, 1)
	b := dialRelay(t, srv, 2)
	joinDocument(t, a, 5)
	joinDocument(t, b, 5)

	if err := a.WriteJSON(ClientMessage{Type: TypeSendChanges, DocID: 5, Delta: json.RawMessage(`{"insert":"x"}`)}); err != nil {
		t.Fatalf("write (a): %v", err)
	}
	if err := b.WriteJSON(ClientMessage{Type: TypeSendChanges, DocID: 5, Delta: json.RawMessage(`{"insert":"y"}`)}); err != nil {
		t.Fatalf("write (b): %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(producer.captured()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	payloads := producer.captured()
	if len(payloads) != 2 {
		t.Fatalf("captured %d events, want 2", len(payloads))
	}

	connIDs := map[string]uint64{}
	for _, raw := range payloads {
		var evt events.DeltaEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if evt.EventType != "DELTA_RELAYED" || evt.DocID != 5 {
			t.Fatalf("event = %+v", evt)
		}
		if evt.ConnID == "" {
			t.Fatalf("event from sender %d has empty connId", evt.SenderID)
		}
		connIDs[evt.ConnID] = evt.SenderID
	}
	if len(connIDs) != 2 {
		t.Fatalf("connection ids not distinct: %v", connIDs)
	}
}
