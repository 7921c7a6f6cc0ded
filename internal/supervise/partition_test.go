package supervise

import (
	"reflect"
	"testing"

	"github.com/Joel-Projects/modlogd/internal/models"
)

func sub(name, account string) models.Subreddit {
	return models.Subreddit{Name: name, ModlogAccount: account}
}

func TestPartitionGroupsByAccount(t *testing.T) {
	subs := []models.Subreddit{
		sub("aaa", "logbot2"),
		sub("bbb", "logbot1"),
		sub("ccc", "logbot1"),
	}

	got := Partition(subs, 10)
	want := []Chunk{
		{Account: "logbot1", Subreddits: []string{"bbb", "ccc"}},
		{Account: "logbot2", Subreddits: []string{"aaa"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Partition = %+v, want %+v", got, want)
	}
}

func TestPartitionSplitsOversizedGroups(t *testing.T) {
	var subs []models.Subreddit
	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, n := range names {
		subs = append(subs, sub(n, "logbot"))
	}

	got := Partition(subs, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	for i, chunk := range got {
		if len(chunk.Subreddits) > 3 {
			t.Errorf("chunk %d exceeds size limit: %v", i, chunk.Subreddits)
		}
	}
	var flat []string
	for _, chunk := range got {
		flat = append(flat, chunk.Subreddits...)
	}
	if !reflect.DeepEqual(flat, names) {
		t.Errorf("chunking reordered or dropped names: %v", flat)
	}
}

func TestPartitionSkipsUnroutableEntries(t *testing.T) {
	subs := []models.Subreddit{
		sub("orphan", ""),
		sub("", "logbot"),
		sub("ok", "logbot"),
	}

	got := Partition(subs, 10)
	want := []Chunk{{Account: "logbot", Subreddits: []string{"ok"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Partition = %+v, want %+v", got, want)
	}
}

func TestPartitionDeterministic(t *testing.T) {
	subs := []models.Subreddit{
		sub("x", "b"), sub("y", "a"), sub("z", "c"),
	}
	first := Partition(subs, 10)
	for i := 0; i < 20; i++ {
		if got := Partition(subs, 10); !reflect.DeepEqual(got, first) {
			t.Fatalf("iteration %d differs: %+v vs %+v", i, got, first)
		}
	}
}
