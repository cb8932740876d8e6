package inventory

import (
	"time"

	"github.com/nerrad567/sensor-net-proxy/internal/bridges/mysensors"
)

// Node is a MySensors node seen on the network.
type Node struct {
	ID             int       `json:"id"`
	SketchName     string    `json:"sketch_name,omitempty"`
	SketchVersion  string    `json:"sketch_version,omitempty"`
	LibraryVersion string    `json:"library_version,omitempty"`
	Repeater       bool      `json:"repeater"`
	BatteryLevel   *int      `json:"battery_level,omitempty"`
	Gateway        string    `json:"gateway,omitempty"`
	MessageCount   int64     `json:"message_count"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	Children       []Child   `json:"children"`
}

// Child is one sensor or actuator presented by a node.
type Child struct {
	ID            int        `json:"id"`
	SensorType    *int       `json:"sensor_type,omitempty"`
	Description   string     `json:"description,omitempty"`
	LastValue     string     `json:"last_value,omitempty"`
	LastValueType *int       `json:"last_value_type,omitempty"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
}

// SensorTypeName returns the S_* name of the presented sensor type, or ""
// if the child was never presented.
func (c Child) SensorTypeName() string {
	if c.SensorType == nil {
		return ""
	}
	return mysensors.SensorType(*c.SensorType).String()
}

// ValueTypeName returns the V_* name of the last reported value, or "".
func (c Child) ValueTypeName() string {
	if c.LastValueType == nil {
		return ""
	}
	return mysensors.SetReqType(*c.LastValueType).String()
}

// ValidNodeID reports whether id can name a node in the inventory.
func ValidNodeID(id int) bool {
	return id >= mysensors.GatewayNodeID && id < mysensors.UnassignedNodeID
}

// child returns the child with the given ID, adding it if missing.
func (n *Node) child(id int) *Child {
	for i := range n.Children {
		if n.Children[i].ID == id {
			return &n.Children[i]
		}
	}
	n.Children = append(n.Children, Child{ID: id})
	return &n.Children[len(n.Children)-1]
}

// DeepCopy returns a copy sharing no memory with n.
func (n *Node) DeepCopy() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.BatteryLevel = copyPtr(n.BatteryLevel)
	if n.Children != nil {
		out.Children = make([]Child, len(n.Children))
		for i, c := range n.Children {
			c.SensorType = copyPtr(c.SensorType)
			c.LastValueType = copyPtr(c.LastValueType)
			c.LastSeen = copyPtr(c.LastSeen)
			out.Children[i] = c
		}
	}
	return &out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
