package supervise

import (
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/Joel-Projects/modlogd/config"
	"github.com/Joel-Projects/modlogd/internal/dedup"
	"github.com/Joel-Projects/modlogd/internal/dispatch"
	"github.com/Joel-Projects/modlogd/internal/logger"
	"github.com/Joel-Projects/modlogd/internal/models"
	"github.com/Joel-Projects/modlogd/internal/reddit"
)

// NewTree builds the supervision tree: one StreamService per
// (chunk, stream kind), all under a single supervisor with exponential
// restart backoff. A chunk whose account has no resolvable credentials is
// skipped with a warning rather than failing startup.
func NewTree(chunks []Chunk, sink dispatch.Sink, cache *dedup.Cache, creds reddit.CredentialSource, cfg *config.Config) *suture.Supervisor {
	handler := &sutureslog.Handler{Logger: logger.With("component", "supervisor")}
	root := suture.New("modlogd", suture.Spec{
		EventHook: handler.MustHook(),
	})

	for _, chunk := range chunks {
		c, ok := creds.Credentials(chunk.Account)
		if !ok {
			logger.Warn("No credentials for modlog account, skipping chunk",
				"account", chunk.Account,
				"subreddits", chunk.Subreddits,
			)
			continue
		}

		for _, kind := range models.StreamKinds {
			// Pagination and token state are per worker, so each service
			// gets its own client.
			client := reddit.NewClient(cfg.Reddit, c)
			reader := reddit.NewReader(client, chunk.Subreddits, kind, cfg.Reddit)
			dispatcher := dispatch.New(sink, cache, kind, cfg.Dispatch)
			root.Add(NewStreamService(reader, dispatcher, cache, kind, chunk))
		}
	}

	return root
}
