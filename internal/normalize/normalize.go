package normalize

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Joel-Projects/modlogd/internal/models"
)

// Table describes how one raw source record maps onto canonical fields:
// direct renames, fields dropped before mapping, and nested tables applied
// to sub-objects the same way.
type Table struct {
	Rename map[string]string
	Nested map[string]Table
	Skip   []string
}

// DefaultTable maps the source mod-log shape onto the canonical record.
// The skip list removes internal source fields that have no canonical
// counterpart.
var DefaultTable = Table{
	Rename: map[string]string{
		"mod":     "moderator",
		"action":  "mod_action",
		"sr_name": "subreddit",
	},
	Skip: []string{"mod_id36", "sr_id36"},
}

// Apply maps a raw record through a table. It is pure: the input map is
// never modified and the same input always yields the same output. An
// empty table is the identity mapping.
func Apply(raw map[string]any, t Table) map[string]any {
	skip := make(map[string]struct{}, len(t.Skip))
	for _, k := range t.Skip {
		skip[k] = struct{}{}
	}

	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if _, drop := skip[k]; drop {
			continue
		}
		if nested, ok := t.Nested[k]; ok {
			if sub, ok := v.(map[string]any); ok {
				v = Apply(sub, nested)
			}
		}
		if renamed, ok := t.Rename[k]; ok {
			k = renamed
		}
		out[k] = v
	}
	return out
}

// SplitFullname splits a compound id like "t3_abc123" into its target type
// and bare id. Both are present or both absent.
func SplitFullname(fullname string) (models.TargetType, string, bool) {
	prefix, id, found := strings.Cut(fullname, "_")
	if !found || id == "" {
		return "", "", false
	}
	t, ok := models.TargetTypeByPrefix[prefix]
	if !ok {
		return "", "", false
	}
	return t, id, true
}

// Action normalizes one raw mod-log entry into the canonical record using
// the default table. The epoch timestamp becomes a UTC time and the target
// fullname is split into target type and id.
func Action(raw map[string]any) (models.ModAction, error) {
	m := Apply(raw, DefaultTable)

	id := str(m, "id")
	if id == "" {
		return models.ModAction{}, fmt.Errorf("normalize: record has no id")
	}

	a := models.ModAction{
		ID:              id,
		Moderator:       str(m, "moderator"),
		Subreddit:       str(m, "subreddit"),
		ModAction:       str(m, "mod_action"),
		Details:         nullable(m, "details"),
		Description:     nullable(m, "description"),
		TargetFullname:  str(m, "target_fullname"),
		TargetAuthor:    nullable(m, "target_author"),
		TargetBody:      nullable(m, "target_body"),
		TargetPermalink: nullable(m, "target_permalink"),
		TargetTitle:     nullable(m, "target_title"),
	}

	if epoch, ok := number(m, "created_utc"); ok {
		sec, frac := math.Modf(epoch)
		a.CreatedUTC = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}

	if t, tid, ok := SplitFullname(a.TargetFullname); ok {
		a.TargetType = t
		a.TargetID = tid
	}

	return a, nil
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func nullable(m map[string]any, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func number(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
