package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/dashboard"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/store"
	"github.com/MrSnakeDoc/stash/internal/summarize"
)

type Deps struct {
	Logger           logger.Logger
	StartTime        time.Time
	Version          string
	Commit           string
	BuildDate        string
	GoVersion        string
	TimeNow          func() time.Time    // for testing, defaults to time.Now
	AllowedHosts     []string            // Host headers allowed to access the server
	AllowedCIDRS     []string            // IPs allowed to access healthz/readyz/infra and import
	TrustProxy       bool                // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RequestTimeout   time.Duration       // per-request timeout of the JSON API
	SummarizeTimeout time.Duration       // per-request timeout of /api/summarize
	SummarizeBurst   int                 // per-owner summary budget, 0 = unlimited
	SummarizePerMin  int                 // refill of the summary budget
	RealtimeOrigins  []string            // extra origins allowed on /api/events
	RedisClient      *redis.Client       // Redis client connection (nil in tests)
	Docs             store.DocumentStore // owner-scoped bookmarks and collections
	Auth             auth.Provider       // session lookup and sign-out
	Hub              *dashboard.Hub      // one live library per signed-in user
	Summaries        *summarize.Cache    // summaries for requests without a loaded bookmark
	Models           []string            // configured model chain, in order
	ImportTrigger    chan struct{}       // Channel to trigger a manual bookmarks import (nil if import disabled)
}
