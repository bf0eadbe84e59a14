package chat

import (
	"testing"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
)

func sampleChats() []store.Chat {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return []store.Chat{
		{ID: "c1", MaskedUserName: "Paciente A", Status: store.StatusNew,
			Category: "ansiedade", Tags: []string{"urgente"},
			UnreadCount: 2, LastMessageAt: base.Add(3 * time.Hour)},
		{ID: "c2", MaskedUserName: "Paciente B", Status: store.StatusInProgress,
			Category: "sono", Tags: []string{"acompanhamento"},
			UnreadCount: 0, LastMessageAt: base.Add(1 * time.Hour)},
		{ID: "c3", MaskedUserName: "Paciente C", Status: store.StatusClosed,
			Category: "ansiedade", Tags: nil,
			UnreadCount: 5, LastMessageAt: base.Add(2 * time.Hour)},
	}
}

func ids(g Group) []string {
	out := make([]string, len(g.Chats))
	for i, c := range g.Chats {
		out[i] = c.ID
	}
	return out
}

func assertOrder(t *testing.T, g Group, want ...string) {
	t.Helper()
	got := ids(g)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestProjectDefaultIsSingleGroupByActivity(t *testing.T) {
	groups := Project(sampleChats(), Filter{})
	if len(groups) != 1 || groups[0].Label != "" {
		t.Fatalf("groups = %+v", groups)
	}
	assertOrder(t, groups[0], "c1", "c3", "c2")
}

func TestProjectQueryMatchesNameCategoryTags(t *testing.T) {
	chats := sampleChats()

	groups := Project(chats, Filter{Query: "paciente b"})
	assertOrder(t, groups[0], "c2")

	groups = Project(chats, Filter{Query: "ANSIEDADE"})
	assertOrder(t, groups[0], "c1", "c3")

	groups = Project(chats, Filter{Query: "urgente"})
	assertOrder(t, groups[0], "c1")
}

func TestProjectStatusFilterIsUnion(t *testing.T) {
	groups := Project(sampleChats(), Filter{
		Statuses: []store.Status{store.StatusNew, store.StatusClosed},
	})
	assertOrder(t, groups[0], "c1", "c3")
}

func TestProjectSortByName(t *testing.T) {
	groups := Project(sampleChats(), Filter{Sort: SortByName})
	assertOrder(t, groups[0], "c1", "c2", "c3")

	groups = Project(sampleChats(), Filter{Sort: SortByName, Reverse: true})
	assertOrder(t, groups[0], "c3", "c2", "c1")
}

func TestProjectSortByUnread(t *testing.T) {
	groups := Project(sampleChats(), Filter{Sort: SortByUnread})
	assertOrder(t, groups[0], "c3", "c1", "c2")
}

func TestProjectReversedActivity(t *testing.T) {
	groups := Project(sampleChats(), Filter{Reverse: true})
	assertOrder(t, groups[0], "c2", "c3", "c1")
}

func TestProjectTagGroups(t *testing.T) {
	groups := Project(sampleChats(), Filter{GroupTags: []string{"urgente", "acompanhamento"}})
	if len(groups) != 3 {
		t.Fatalf("got %d groups", len(groups))
	}
	if groups[0].Label != "urgente" {
		t.Fatalf("group 0 label = %q", groups[0].Label)
	}
	assertOrder(t, groups[0], "c1")
	assertOrder(t, groups[1], "c2")
	if groups[2].Label != UnmatchedGroup {
		t.Fatalf("group 2 label = %q", groups[2].Label)
	}
	assertOrder(t, groups[2], "c3")
}

func TestProjectFilterThenGroup(t *testing.T) {
	groups := Project(sampleChats(), Filter{
		Statuses:  []store.Status{store.StatusNew},
		GroupTags: []string{"acompanhamento"},
	})
	if len(ids(groups[0])) != 0 {
		t.Fatalf("acompanhamento group = %v", ids(groups[0]))
	}
	assertOrder(t, groups[1], "c1")
}
