package mysensors

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		got, want string
	}{
		{topics.State(12, 6), "sensornet/state/mysensors/12/6"},
		{topics.Command(1, 255), "sensornet/command/mysensors/1/255"},
		{topics.CommandSubscription(), "sensornet/command/mysensors/#"},
		{topics.Ack("abc"), "sensornet/ack/mysensors/abc"},
		{topics.Health(), "sensornet/health/mysensors"},
		{Topics{Prefix: "home/"}.Health(), "home/health/mysensors"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseCommandTopic(t *testing.T) {
	topics := Topics{Prefix: "home"}
	tests := []struct {
		topic       string
		node, child int
		wantErr     bool
	}{
		{"home/command/mysensors/4/2", 4, 2, false},
		{"home/command/mysensors/0/255", 0, 255, false},
		{"home/command/mysensors/4", 0, 0, true},
		{"home/command/mysensors/a/2", 0, 0, true},
		{"home/state/mysensors/4/2", 0, 0, true},
		{"other/command/mysensors/4/2", 0, 0, true},
	}
	for _, tt := range tests {
		node, child, err := topics.ParseCommandTopic(tt.topic)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommandTopic(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (node != tt.node || child != tt.child) {
			t.Errorf("ParseCommandTopic(%q) = %d/%d, want %d/%d", tt.topic, node, child, tt.node, tt.child)
		}
	}
}

func TestCommandToMessage(t *testing.T) {
	msg, err := CommandMessage{Type: 2, Ack: true, SubType: 3}.ToMessage(5, 1)
	if err != nil {
		t.Fatalf("ToMessage() error = %v", err)
	}
	want := Message{NodeID: 5, ChildID: 1, Type: MessageTypeReq, Ack: true, SubType: 3}
	if msg != want {
		t.Errorf("ToMessage() = %+v, want %+v", msg, want)
	}

	msg, err = CommandMessage{Raw: "1;2;1;0;0;5\n"}.ToMessage(9, 9)
	if err != nil || msg.NodeID != 1 || msg.ChildID != 2 {
		t.Errorf("raw ToMessage() = %+v, %v", msg, err)
	}
}
