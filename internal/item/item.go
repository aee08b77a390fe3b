package item

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies the kind of personal-data item a connector produced.
type Type string

const (
	TypeMessage Type = "message"
	TypeEvent   Type = "event"
	TypeTask    Type = "task"
	TypePost    Type = "post"
)

// Entity kinds recognized on items.
const (
	EntityPerson  = "person"
	EntityOrg     = "org"
	EntityProject = "project"
	EntityTopic   = "topic"
)

// Entity is a person, organization, project, or topic mentioned by an item.
type Entity struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// Engagement carries optional engagement metadata from social sources.
// These fields are volatile and never participate in content hashing.
type Engagement struct {
	Likes   int `json:"likes,omitempty"`
	Replies int `json:"replies,omitempty"`
	Views   int `json:"views,omitempty"`
}

// Action signals a connector may attach to an item.
const (
	SignalAssigned      = "assigned"
	SignalDirectRequest = "direct_request"
	SignalReplyNeeded   = "reply_needed"
	SignalMention       = "mention"
)

// NormalizedItem is the common shape every source connector hands to the
// engine. It is immutable once produced.
type NormalizedItem struct {
	Module     string      `json:"module"`
	SourceID   string      `json:"source_id"`
	Type       Type        `json:"type"`
	Title      string      `json:"title"`
	Body       string      `json:"body,omitempty"`
	From       string      `json:"from,omitempty"`
	Audience   int         `json:"audience,omitempty"`
	Entities   []Entity    `json:"entities,omitempty"`
	Signals    []string    `json:"signals,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Due        *time.Time  `json:"due,omitempty"`
	Engagement *Engagement `json:"engagement,omitempty"`
}

// MalformedItemError reports an item missing the fields needed to derive a
// stable identity. The caller skips the single item, not the whole module.
type MalformedItemError struct {
	Module string
	Reason string
}

func (e *MalformedItemError) Error() string {
	return fmt.Sprintf("malformed item from %q: %s", e.Module, e.Reason)
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"and": true, "but": true, "or": true, "not": true, "for": true, "with": true,
	"this": true, "that": true, "from": true, "your": true, "you": true,
	"will": true, "have": true, "has": true, "about": true, "our": true,
	"all": true, "can": true, "please": true, "new": true, "out": true,
}

// Topics derives the lowercase topic tokens used for relevance matching:
// entity names plus significant title words.
func (it NormalizedItem) Topics() []string {
	seen := make(map[string]bool)
	var topics []string

	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		topics = append(topics, s)
	}

	for _, e := range it.Entities {
		add(e.Name)
	}
	for _, w := range strings.Fields(strings.ToLower(it.Title)) {
		w = strings.Trim(w, ".,!?:;\"'()[]")
		if len(w) > 3 && !stopWords[w] {
			add(w)
		}
	}
	return topics
}

// SharesEntity reports whether two items name a common person, org, or
// project. Topic entities are too broad to count as shared identity.
func SharesEntity(a, b NormalizedItem) bool {
	if len(a.Entities) == 0 || len(b.Entities) == 0 {
		return false
	}
	keys := make(map[string]bool, len(a.Entities))
	for _, e := range a.Entities {
		if e.Kind == EntityTopic {
			continue
		}
		keys[e.Kind+"\x00"+strings.ToLower(e.Name)] = true
	}
	for _, e := range b.Entities {
		if e.Kind == EntityTopic {
			continue
		}
		if keys[e.Kind+"\x00"+strings.ToLower(e.Name)] {
			return true
		}
	}
	return false
}
