// Package supervise runs the stream workers. Registered subreddits are
// partitioned by service account into bounded chunks, and every
// (chunk, stream kind) pair runs as an independently supervised service
// under a suture tree.
package supervise

import (
	"sort"

	"github.com/Joel-Projects/modlogd/internal/models"
)

// Chunk is one group of subreddit names readable through a single service
// account's mod-log view.
type Chunk struct {
	Account    string
	Subreddits []string
}

// Partition groups registered subreddits by their modlog account and
// splits each group into chunks of at most chunkSize names. The source API
// accepts a multi-subreddit filter, so one chunk costs one request stream.
// Output order is deterministic: accounts sorted, names in snapshot order.
func Partition(subs []models.Subreddit, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = 1
	}

	byAccount := make(map[string][]string)
	for _, s := range subs {
		if s.ModlogAccount == "" || s.Name == "" {
			continue
		}
		byAccount[s.ModlogAccount] = append(byAccount[s.ModlogAccount], s.Name)
	}

	accounts := make([]string, 0, len(byAccount))
	for account := range byAccount {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	var chunks []Chunk
	for _, account := range accounts {
		names := byAccount[account]
		for start := 0; start < len(names); start += chunkSize {
			end := start + chunkSize
			if end > len(names) {
				end = len(names)
			}
			chunks = append(chunks, Chunk{Account: account, Subreddits: names[start:end]})
		}
	}
	return chunks
}
