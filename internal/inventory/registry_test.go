package inventory

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sensor-net-proxy/internal/bridges/mysensors"
)

// mockRepository is an in-memory Repository for registry tests.
type mockRepository struct {
	mu      sync.Mutex
	nodes   map[int]*Node
	saves   int
	saveErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{nodes: make(map[int]*Node)}
}

func (m *mockRepository) GetByID(_ context.Context, id int) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return n.DeepCopy(), nil
}

func (m *mockRepository) List(_ context.Context) ([]Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, *n.DeepCopy())
	}
	return out, nil
}

func (m *mockRepository) Save(_ context.Context, n *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.nodes[n.ID] = n.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return ErrNodeNotFound
	}
	delete(m.nodes, id)
	return nil
}

var testGateway = &net.UDPAddr{IP: net.IPv4(192, 168, 1, 50), Port: 5003}

func observe(t *testing.T, r *Registry, lines ...string) {
	t.Helper()
	for _, line := range lines {
		msg, err := mysensors.ParseMessage(line)
		if err != nil {
			t.Fatalf("ParseMessage(%q) error = %v", line, err)
		}
		in := mysensors.Inbound{Message: msg, Gateway: testGateway, ReceivedAt: time.Now()}
		if err := r.Publish(context.Background(), in); err != nil {
			t.Fatalf("Publish(%q) error = %v", line, err)
		}
	}
}

func TestRegistry_BuildsNodeFromTraffic(t *testing.T) {
	repo := newMockRepository()
	r := NewRegistry(repo)

	observe(t, r,
		"12;255;0;0;18;1.4.1",
		"12;255;3;0;11;Weather Station",
		"12;255;3;0;12;2.0",
		"12;1;0;0;6;outside",
		"12;1;1;0;0;21.5",
		"12;255;3;0;0;87",
	)

	node, err := r.GetNode(context.Background(), 12)
	if err != nil {
		t.Fatalf("GetNode() error = %v", err)
	}

	if !node.Repeater || node.LibraryVersion != "1.4.1" {
		t.Errorf("repeater=%v library=%q", node.Repeater, node.LibraryVersion)
	}
	if node.SketchName != "Weather Station" || node.SketchVersion != "2.0" {
		t.Errorf("sketch = %q %q", node.SketchName, node.SketchVersion)
	}
	if node.BatteryLevel == nil || *node.BatteryLevel != 87 {
		t.Errorf("BatteryLevel = %v, want 87", node.BatteryLevel)
	}
	if node.MessageCount != 6 || node.Gateway != "192.168.1.50:5003" {
		t.Errorf("count=%d gateway=%q", node.MessageCount, node.Gateway)
	}
	if len(node.Children) != 1 {
		t.Fatalf("Children = %+v", node.Children)
	}
	c := node.Children[0]
	if c.SensorTypeName() != "S_TEMP" || c.Description != "outside" || c.LastValue != "21.5" || c.ValueTypeName() != "V_TEMP" {
		t.Errorf("child = %+v", c)
	}

	if repo.saves != 6 {
		t.Errorf("saves = %d, want 6 (write-through)", repo.saves)
	}
	if stored, _ := repo.GetByID(context.Background(), 12); stored.SketchName != "Weather Station" {
		t.Errorf("persisted node = %+v", stored)
	}
}

func TestRegistry_IgnoresUnassignedNode(t *testing.T) {
	repo := newMockRepository()
	r := NewRegistry(repo)

	observe(t, r, "255;255;3;0;3;")

	if r.Count() != 0 || repo.saves != 0 {
		t.Errorf("count=%d saves=%d, want nothing recorded", r.Count(), repo.saves)
	}
}

func TestRegistry_InvalidBatteryIgnored(t *testing.T) {
	r := NewRegistry(newMockRepository())
	observe(t, r, "4;255;3;0;0;full", "4;255;3;0;0;140")

	node, err := r.GetNode(context.Background(), 4)
	if err != nil {
		t.Fatalf("GetNode() error = %v", err)
	}
	if node.BatteryLevel != nil {
		t.Errorf("BatteryLevel = %d, want unset", *node.BatteryLevel)
	}
}

func TestRegistry_RefreshCacheAndList(t *testing.T) {
	repo := newMockRepository()
	now := time.Now()
	for _, id := range []int{9, 1, 4} {
		repo.nodes[id] = &Node{ID: id, FirstSeen: now, LastSeen: now}
	}

	r := NewRegistry(repo)
	if err := r.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	nodes := r.ListNodes()
	if len(nodes) != 3 || nodes[0].ID != 1 || nodes[1].ID != 4 || nodes[2].ID != 9 {
		t.Errorf("ListNodes() = %+v, want ordered 1,4,9", nodes)
	}
}

func TestRegistry_GetNodeFallsBackToRepository(t *testing.T) {
	repo := newMockRepository()
	repo.nodes[3] = &Node{ID: 3, SketchName: "Door"}
	r := NewRegistry(repo)

	node, err := r.GetNode(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetNode() error = %v", err)
	}
	if node.SketchName != "Door" || r.Count() != 1 {
		t.Errorf("node=%+v count=%d", node, r.Count())
	}

	if _, err := r.GetNode(context.Background(), 8); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("GetNode(8) error = %v, want ErrNodeNotFound", err)
	}
	if _, err := r.GetNode(context.Background(), 255); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("GetNode(255) error = %v, want ErrInvalidNode", err)
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	r := NewRegistry(newMockRepository())
	observe(t, r, "2;1;1;0;0;20")

	node, _ := r.GetNode(context.Background(), 2)
	node.Children[0].LastValue = "mutated"

	again, _ := r.GetNode(context.Background(), 2)
	if again.Children[0].LastValue != "20" {
		t.Errorf("cache mutated through returned node: %q", again.Children[0].LastValue)
	}
}

func TestRegistry_DeleteNode(t *testing.T) {
	r := NewRegistry(newMockRepository())
	observe(t, r, "6;1;1;0;0;20")

	if err := r.DeleteNode(context.Background(), 6); err != nil {
		t.Fatalf("DeleteNode() error = %v", err)
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d after delete", r.Count())
	}
	if err := r.DeleteNode(context.Background(), 6); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("second DeleteNode() error = %v, want ErrNodeNotFound", err)
	}
}

func TestRegistry_SaveFailure(t *testing.T) {
	repo := newMockRepository()
	repo.saveErr = errors.New("disk full")
	r := NewRegistry(repo)

	msg, _ := mysensors.ParseMessage("1;1;1;0;0;20")
	err := r.Publish(context.Background(), mysensors.Inbound{Message: msg})
	if err == nil {
		t.Fatal("Publish() succeeded with failing repository")
	}
	// The cache still reflects the message.
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}
