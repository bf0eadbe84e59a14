package chat

import (
	"slices"
	"sort"
	"strings"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
)

// SortField selects the conversation list ordering.
type SortField string

const (
	SortByActivity SortField = "activity"
	SortByName     SortField = "name"
	SortByUnread   SortField = "unread"
	SortByStatus   SortField = "status"
)

// UnmatchedGroup is the synthetic group label for chats carrying none of
// the grouping tags.
const UnmatchedGroup = "unmatched"

// Filter describes one view over the chat list. The zero value shows
// everything, newest activity first.
type Filter struct {
	// Query is matched case-insensitively against masked name, category
	// and tags.
	Query string
	// Statuses keeps only the listed statuses; empty keeps all.
	Statuses []store.Status
	Sort     SortField
	// Reverse flips the field's natural direction.
	Reverse bool
	// GroupTags groups the result by these tag values; a chat appears in
	// every group whose tag it carries, and chats with none land in the
	// unmatched group.
	GroupTags []string
}

// Group is one rendered section of the conversation list.
type Group struct {
	Label string
	Chats []store.Chat
}

// Project applies a filter to a chat snapshot and returns display groups.
// Without GroupTags the result is a single unlabeled group.
func Project(chats []store.Chat, f Filter) []Group {
	kept := make([]store.Chat, 0, len(chats))
	for _, c := range chats {
		if !matchesQuery(c, f.Query) {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, c.Status) {
			continue
		}
		kept = append(kept, c)
	}
	sortChats(kept, f.Sort, f.Reverse)

	if len(f.GroupTags) == 0 {
		return []Group{{Chats: kept}}
	}

	groups := make([]Group, 0, len(f.GroupTags)+1)
	for _, tag := range f.GroupTags {
		g := Group{Label: tag}
		for _, c := range kept {
			if hasTag(c, tag) {
				g.Chats = append(g.Chats, c)
			}
		}
		groups = append(groups, g)
	}
	unmatched := Group{Label: UnmatchedGroup}
	for _, c := range kept {
		if !hasAnyTag(c, f.GroupTags) {
			unmatched.Chats = append(unmatched.Chats, c)
		}
	}
	groups = append(groups, unmatched)
	return groups
}

func matchesQuery(c store.Chat, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.MaskedUserName), q) {
		return true
	}
	if strings.Contains(strings.ToLower(c.Category), q) {
		return true
	}
	for _, t := range c.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func hasTag(c store.Chat, tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func hasAnyTag(c store.Chat, tags []string) bool {
	for _, tag := range tags {
		if hasTag(c, tag) {
			return true
		}
	}
	return false
}

func sortChats(chats []store.Chat, field SortField, reverse bool) {
	less := func(a, b store.Chat) bool {
		switch field {
		case SortByName:
			return strings.ToLower(a.MaskedUserName) < strings.ToLower(b.MaskedUserName)
		case SortByUnread:
			if a.UnreadCount != b.UnreadCount {
				// Unread sorts busiest first in its natural direction.
				return a.UnreadCount > b.UnreadCount
			}
			return a.LastMessageAt.After(b.LastMessageAt)
		case SortByStatus:
			if a.Status != b.Status {
				return a.Status < b.Status
			}
			return a.LastMessageAt.After(b.LastMessageAt)
		default:
			return a.LastMessageAt.After(b.LastMessageAt)
		}
	}
	sort.SliceStable(chats, func(i, j int) bool {
		if reverse {
			return less(chats[j], chats[i])
		}
		return less(chats[i], chats[j])
	})
}
