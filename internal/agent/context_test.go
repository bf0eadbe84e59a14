package agent

import "testing"

func TestOnlineObserver(t *testing.T) {
	c := NewContext(Agent{ID: "a1", Name: "Dra. Ana"}, true)

	var got []bool
	unsub := c.Subscribe(func(online bool) { got = append(got, online) })

	c.SetOnline(false)
	c.SetOnline(false) // no change, no notification
	c.SetOnline(true)
	unsub()
	c.SetOnline(false)

	if len(got) != 2 || got[0] != false || got[1] != true {
		t.Errorf("notifications = %v, want [false true]", got)
	}
	if c.Online() {
		t.Error("Online() = true after final SetOnline(false)")
	}
	if c.Agent().ID != "a1" {
		t.Errorf("Agent().ID = %s", c.Agent().ID)
	}
}
