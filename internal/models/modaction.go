package models

import "time"

// TargetType is the class of object a moderation action touched, derived
// from the type prefix of the target fullname.
type TargetType string

const (
	TargetComment   TargetType = "Comment"
	TargetAccount   TargetType = "Account"
	TargetLink      TargetType = "Link"
	TargetMessage   TargetType = "Message"
	TargetSubreddit TargetType = "Subreddit"
	TargetAward     TargetType = "Award"
)

// TargetTypeByPrefix maps fullname type prefixes to target types.
var TargetTypeByPrefix = map[string]TargetType{
	"t1": TargetComment,
	"t2": TargetAccount,
	"t3": TargetLink,
	"t4": TargetMessage,
	"t5": TargetSubreddit,
	"t6": TargetAward,
}

// QueryAction records what the persistence layer did with a row. It is the
// authoritative novelty signal for the whole pipeline.
type QueryAction string

const (
	QueryInsert QueryAction = "insert"
	QueryUpdate QueryAction = "update"
)

// ModAction is the canonical record of one moderation event. Rows are
// append-only: once stored under an id they are never mutated or deleted.
type ModAction struct {
	ID              string      `json:"id" db:"id"`
	CreatedUTC      time.Time   `json:"created_utc" db:"created_utc"`
	Moderator       string      `json:"moderator" db:"moderator"`
	Subreddit       string      `json:"subreddit" db:"subreddit"`
	ModAction       string      `json:"mod_action" db:"mod_action"`
	Details         *string     `json:"details" db:"details"`
	Description     *string     `json:"description" db:"description"`
	TargetType      TargetType  `json:"target_type" db:"target_type"`
	TargetID        string      `json:"target_id" db:"target_id"`
	TargetFullname  string      `json:"target_fullname" db:"target_fullname"`
	TargetAuthor    *string     `json:"target_author" db:"target_author"`
	TargetBody      *string     `json:"target_body" db:"target_body"`
	TargetPermalink *string     `json:"target_permalink" db:"target_permalink"`
	TargetTitle     *string     `json:"target_title" db:"target_title"`
	QueryAction     QueryAction `json:"query_action" db:"query_action"`
}

// StreamKind identifies one of the four worker loops run per subreddit chunk
type StreamKind string

const (
	KindBacklog      StreamKind = "backlog"
	KindAdminBacklog StreamKind = "admin_backlog"
	KindStream       StreamKind = "stream"
	KindAdminStream  StreamKind = "admin_stream"
)

// Admin reports whether the kind covers the privileged actor subset
func (k StreamKind) Admin() bool {
	return k == KindAdminBacklog || k == KindAdminStream
}

// Live reports whether the kind is a continuous live tail rather than a
// one-shot history walk
func (k StreamKind) Live() bool {
	return k == KindStream || k == KindAdminStream
}

// StreamKinds lists every kind the supervisor starts per chunk
var StreamKinds = []StreamKind{KindBacklog, KindAdminBacklog, KindStream, KindAdminStream}

// Subreddit is one registered community, read-only to the pipeline.
// Registrations are owned by the external command surface.
type Subreddit struct {
	Name           string `json:"name" db:"name"`
	RoleID         string `json:"role_id" db:"role_id"`
	ChannelID      string `json:"channel_id" db:"channel_id"`
	ModlogAccount  string `json:"modlog_account" db:"modlog_account"`
	AlertChannelID string `json:"alert_channel_id" db:"alert_channel_id"`
}

// Webhook is the registered alert endpoints for one community
type Webhook struct {
	Subreddit  string `json:"subreddit" db:"subreddit"`
	AdminURL   string `json:"admin_url" db:"admin_url"`
	GeneralURL string `json:"general_url" db:"general_url"`
}
