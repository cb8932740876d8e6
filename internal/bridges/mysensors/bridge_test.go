package mysensors

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu        sync.Mutex
	published []mockPublish
	handlers  map[string]func(topic string, payload []byte)
	connected bool
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

// publishedTo returns the messages published on topic.
func (m *MockMQTTClient) publishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// SimulateMessage delivers a message to the handler subscribed on pattern.
func (m *MockMQTTClient) SimulateMessage(pattern, topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if ok {
		handler(topic, payload)
	}
}

// mockForwarder records submitted messages.
type mockForwarder struct {
	mu   sync.Mutex
	msgs []Message
	sent int
	err  error
}

func (f *mockForwarder) Submit(_ context.Context, msg Message) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.sent, f.err
}

// blockingForwarder holds every Submit until release is closed.
type blockingForwarder struct {
	entered chan struct{}
	release chan struct{}
}

func (f *blockingForwarder) Submit(ctx context.Context, _ Message) (int, error) {
	f.entered <- struct{}{}
	select {
	case <-f.release:
		return 1, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *mockForwarder) getMessages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func newTestBridge(t *testing.T, fwd Forwarder) (*Bridge, *MockMQTTClient) {
	t.Helper()
	client := NewMockMQTTClient()
	b, err := NewBridge(BridgeOptions{
		MQTTClient:     client,
		Forwarder:      fwd,
		TopicPrefix:    "test",
		RetainState:    true,
		HealthInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	return b, client
}

func TestNewBridgeValidation(t *testing.T) {
	if _, err := NewBridge(BridgeOptions{Forwarder: &mockForwarder{}}); err == nil {
		t.Error("missing MQTT client accepted")
	}
	if _, err := NewBridge(BridgeOptions{MQTTClient: NewMockMQTTClient()}); err == nil {
		t.Error("missing forwarder accepted")
	}
}

func TestBridgePublishState(t *testing.T) {
	b, client := newTestBridge(t, &mockForwarder{})

	in := Inbound{
		Message:    Message{NodeID: 12, ChildID: 6, Type: MessageTypeSet, SubType: int(SetReqTemp), Payload: "21.5"},
		Gateway:    udpAddr("192.168.1.50:5003"),
		ReceivedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := b.Publish(context.Background(), in); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := client.publishedTo("test/state/mysensors/12/6")
	if len(msgs) != 1 {
		t.Fatalf("state messages = %d, want 1", len(msgs))
	}
	if !msgs[0].Retained {
		t.Error("Set message not retained")
	}

	var state StateMessage
	if err := json.Unmarshal(msgs[0].Payload, &state); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if state.ID == "" || state.Protocol != Protocol || state.Gateway != "192.168.1.50:5003" {
		t.Errorf("envelope = %+v", state)
	}
	if state.Type != "Set" || state.SubType != "V_TEMP" || state.Payload != "21.5" || state.Raw != "12;6;1;0;0;21.5" {
		t.Errorf("state = %+v", state)
	}
}

func TestBridgePublishCancelled(t *testing.T) {
	b, client := newTestBridge(t, &mockForwarder{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Publish(ctx, Inbound{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() error = %v, want context.Canceled", err)
	}
	if len(client.GetPublished()) != 0 {
		t.Error("published after cancellation")
	}
}

func TestBridgeCommand(t *testing.T) {
	fwd := &mockForwarder{sent: 2}
	b, client := newTestBridge(t, fwd)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	cmd := CommandMessage{ID: "cmd-1", Type: int(MessageTypeSet), SubType: int(SetReqLight), Payload: "1"}
	payload, _ := json.Marshal(cmd)
	client.SimulateMessage("test/command/mysensors/#", "test/command/mysensors/4/2", payload)

	msgs := fwd.getMessages()
	if len(msgs) != 1 {
		t.Fatalf("submitted = %d, want 1", len(msgs))
	}
	want := Message{NodeID: 4, ChildID: 2, Type: MessageTypeSet, SubType: int(SetReqLight), Payload: "1"}
	if msgs[0] != want {
		t.Errorf("submitted %+v, want %+v", msgs[0], want)
	}

	acks := client.publishedTo("test/ack/mysensors/cmd-1")
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[0].Payload, &ack); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ack.Status != AckAccepted || ack.Gateways != 2 {
		t.Errorf("ack = %+v", ack)
	}
}

func TestBridgeCommandOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		fwd     *mockForwarder
		topic   string
		cmd     CommandMessage
		status  AckStatus
		code    string
		submits int
	}{
		{
			name:    "no gateways",
			fwd:     &mockForwarder{},
			topic:   "test/command/mysensors/1/1",
			cmd:     CommandMessage{ID: "c", Type: 1},
			status:  AckNoGateways,
			submits: 1,
		},
		{
			name:    "send failed",
			fwd:     &mockForwarder{err: errors.New("unreachable")},
			topic:   "test/command/mysensors/1/1",
			cmd:     CommandMessage{ID: "c", Type: 1},
			status:  AckFailed,
			code:    ErrCodeSendFailed,
			submits: 1,
		},
		{
			name:    "loop stopped",
			fwd:     &mockForwarder{err: ErrLoopStopped},
			topic:   "test/command/mysensors/1/1",
			cmd:     CommandMessage{ID: "c", Type: 1},
			status:  AckFailed,
			code:    ErrCodeUnavailable,
			submits: 1,
		},
		{
			name:   "bad payload",
			fwd:    &mockForwarder{},
			topic:  "test/command/mysensors/1/1",
			cmd:    CommandMessage{ID: "c", Type: 1, Payload: "a;b"},
			status: AckFailed,
			code:   ErrCodeInvalidCommand,
		},
		{
			name:   "bad topic",
			fwd:    &mockForwarder{},
			topic:  "test/command/mysensors/node",
			cmd:    CommandMessage{ID: "c", Type: 1},
			status: AckFailed,
			code:   ErrCodeInvalidCommand,
		},
		{
			name:    "raw line",
			fwd:     &mockForwarder{sent: 1},
			topic:   "test/command/mysensors/raw",
			cmd:     CommandMessage{ID: "c", Raw: "9;9;1;0;2;1"},
			status:  AckAccepted,
			submits: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client := newTestBridge(t, tt.fwd)
			payload, _ := json.Marshal(tt.cmd)
			b.handleCommand(tt.topic, payload)

			if got := len(tt.fwd.getMessages()); got != tt.submits {
				t.Errorf("submits = %d, want %d", got, tt.submits)
			}
			acks := client.publishedTo("test/ack/mysensors/c")
			if len(acks) != 1 {
				t.Fatalf("acks = %d, want 1", len(acks))
			}
			var ack AckMessage
			if err := json.Unmarshal(acks[0].Payload, &ack); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if ack.Status != tt.status {
				t.Errorf("status = %s, want %s", ack.Status, tt.status)
			}
			if tt.code != "" && (ack.Error == nil || ack.Error.Code != tt.code) {
				t.Errorf("error = %+v, want code %s", ack.Error, tt.code)
			}
		})
	}
}

func TestBridgeCommandInvalidJSON(t *testing.T) {
	fwd := &mockForwarder{}
	b, client := newTestBridge(t, fwd)
	b.handleCommand("test/command/mysensors/1/1", []byte("{not json"))

	if len(fwd.getMessages()) != 0 || len(client.GetPublished()) != 0 {
		t.Error("invalid JSON produced output")
	}
}

func TestBridgeCommandGeneratesID(t *testing.T) {
	fwd := &mockForwarder{sent: 1}
	b, client := newTestBridge(t, fwd)
	b.handleCommand("test/command/mysensors/1/1", []byte(`{"type":1,"sub_type":2,"payload":"1"}`))

	pubs := client.GetPublished()
	if len(pubs) != 1 {
		t.Fatalf("published = %d, want 1 ack", len(pubs))
	}
	var ack AckMessage
	if err := json.Unmarshal(pubs[0].Payload, &ack); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ack.CommandID == "" || pubs[0].Topic != "test/ack/mysensors/"+ack.CommandID {
		t.Errorf("ack %+v on %s", ack, pubs[0].Topic)
	}
}

func TestBridgeCommandsDoNotBlockEachOther(t *testing.T) {
	fwd := &blockingForwarder{entered: make(chan struct{}, 2), release: make(chan struct{})}
	b, client := newTestBridge(t, fwd)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	payload, _ := json.Marshal(CommandMessage{Type: int(MessageTypeSet), Payload: "1"})
	for j := 0; j < 2; j++ {
		go client.SimulateMessage("test/command/mysensors/#", "test/command/mysensors/4/2", payload)
	}

	// Both commands are inside Submit at once.
	for i := 0; i < 2; i++ {
		select {
		case <-fwd.entered:
		case <-time.After(time.Second):
			t.Fatalf("command %d never reached the forwarder", i)
		}
	}
	close(fwd.release)
}

func TestBridgeStopWaitsForCommands(t *testing.T) {
	fwd := &blockingForwarder{entered: make(chan struct{}, 1), release: make(chan struct{})}
	b, client := newTestBridge(t, fwd)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	payload, _ := json.Marshal(CommandMessage{ID: "slow", Type: int(MessageTypeSet), Payload: "1"})
	go client.SimulateMessage("test/command/mysensors/#", "test/command/mysensors/4/2", payload)
	<-fwd.entered

	stopped := make(chan struct{})
	go func() {
		b.Stop()
		close(stopped)
	}()

	// Stop cancels the bridge context, which ends the pending Submit.
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	acks := client.publishedTo("test/ack/mysensors/slow")
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1 (command finished before Stop returned)", len(acks))
	}
}

func TestBridgeCommandAfterStop(t *testing.T) {
	fwd := &mockForwarder{sent: 1}
	b, client := newTestBridge(t, fwd)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	b.Stop()

	payload, _ := json.Marshal(CommandMessage{ID: "late", Type: int(MessageTypeSet), Payload: "1"})
	client.SimulateMessage("test/command/mysensors/#", "test/command/mysensors/4/2", payload)

	if n := len(fwd.getMessages()); n != 0 {
		t.Errorf("submitted %d commands after Stop", n)
	}
	if acks := client.publishedTo("test/ack/mysensors/late"); len(acks) != 0 {
		t.Errorf("acks after Stop = %d, want 0", len(acks))
	}
}
