// README: Bench cases: environment, match lifecycle, race and consistency checks, throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "store reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "fanout reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "tables from migrations/0001_init.sql",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "API: health",
			Focus: "server reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				res := r.call(ctx, http.MethodGet, "/health", "", nil)
				return expect(res, http.StatusOK)
			},
		},
		{
			Name:  "API: missing token -> 401",
			Focus: "auth middleware",
			Run: func(ctx context.Context, r *Runner) Result {
				return expect(r.call(ctx, http.MethodGet, "/api/me", "", nil), http.StatusUnauthorized)
			},
		},
		{
			Name:  "Listing: invalid quantity -> 400",
			Focus: "validation",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.cfg.FarmerToken == "" {
					return Result{Status: "SKIP", Note: "farmer token not set"}
				}
				return expect(r.call(ctx, http.MethodPost, "/api/listings", r.cfg.FarmerToken, map[string]any{
					"crop": "maize", "quantity": 0, "location": map[string]any{"county": "Nakuru"},
				}), http.StatusBadRequest)
			},
		},
		{
			Name:  "Match: full lifecycle to completed",
			Focus: "requested -> accepted -> driver -> in_transit -> completed, then review",
			Run:   fullLifecycle,
		},
		{
			Name:  "Match: duplicate listing/demand pair -> 409",
			Focus: "one match per pair",
			Run: func(ctx context.Context, r *Runner) Result {
				p, res := r.newPair(ctx)
				if res != nil {
					return *res
				}
				body := map[string]any{"listing_id": p.listing, "demand_id": p.demand}
				first := r.call(ctx, http.MethodPost, "/api/matches", r.cfg.BuyerToken, body)
				if first.status != http.StatusCreated {
					return fail(first, "first create")
				}
				return expect(r.call(ctx, http.MethodPost, "/api/matches", r.cfg.BuyerToken, body), http.StatusConflict)
			},
		},
		{
			Name:  "Concurrency: many accepts, one winner",
			Focus: "version compare-and-set",
			Run: func(ctx context.Context, r *Runner) Result {
				id, res := r.newMatch(ctx)
				if res != nil {
					return *res
				}
				return race(ctx, r, r.cfg.Concurrency, func(int) (string, string) {
					return "/api/matches/" + id + "/accept", r.cfg.FarmerToken
				})
			},
		},
		{
			Name:  "Concurrency: cancel vs accept",
			Focus: "first committed write wins",
			Run: func(ctx context.Context, r *Runner) Result {
				id, res := r.newMatch(ctx)
				if res != nil {
					return *res
				}
				return race(ctx, r, 2, func(i int) (string, string) {
					if i%2 == 0 {
						return "/api/matches/" + id + "/accept", r.cfg.FarmerToken
					}
					return "/api/matches/" + id + "/cancel", r.cfg.BuyerToken
				})
			},
		},
		{
			Name:  "Consistency: version equals event count",
			Focus: "every committed transition appends one event",
			Run: func(ctx context.Context, r *Runner) Result {
				id, res := r.newMatch(ctx)
				if res != nil {
					return *res
				}
				r.call(ctx, http.MethodPost, "/api/matches/"+id+"/accept", r.cfg.FarmerToken, nil)
				r.call(ctx, http.MethodPost, "/api/matches/"+id+"/cancel", r.cfg.BuyerToken, nil)
				return r.checkVersion(ctx, id, 3)
			},
		},
		manualCase("Expiry: overdue match expires", "run the API with AGRI_MATCH_TTL=30s and AGRI_SWEEP_INTERVAL=5s, then GET the match"),
		manualCase("Error: DB down -> 500", "stop Postgres and observe responses"),
		{
			Name:  "Perf: listing browse throughput",
			Focus: "GET /api/listings under load",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.cfg.BuyerToken == "" {
					return Result{Status: "SKIP", Note: "buyer token not set"}
				}
				return perfLoad(ctx, r, http.MethodGet, "/api/listings?crop=maize&limit=20", r.cfg.BuyerToken)
			},
		},
	}
}

func fullLifecycle(ctx context.Context, r *Runner) Result {
	if r.cfg.DriverToken == "" {
		return Result{Status: "SKIP", Note: "driver token not set"}
	}
	start := time.Now()
	id, res := r.newMatch(ctx)
	if res != nil {
		return *res
	}
	var offer struct {
		ID string `json:"id"`
	}
	o := r.call(ctx, http.MethodPost, "/api/transport-offers", r.cfg.DriverToken, map[string]any{
		"vehicle_type": "pickup", "capacity_kg": 2000, "price_per_km": "45", "origin_county": "Nakuru",
	})
	if o.status != http.StatusCreated || o.decode(&offer) != nil {
		return fail(o, "create offer")
	}
	steps := []struct {
		path  string
		token string
		body  any
	}{
		{"/accept", r.cfg.FarmerToken, nil},
		{"/assign-driver", r.cfg.BuyerToken, map[string]any{"offer_id": offer.ID}},
		{"/driver-accept", r.cfg.DriverToken, nil},
		{"/start-transit", r.cfg.DriverToken, nil},
		{"/complete", r.cfg.BuyerToken, nil},
	}
	for _, s := range steps {
		res := r.call(ctx, http.MethodPost, "/api/matches/"+id+s.path, s.token, s.body)
		if res.status != http.StatusOK {
			return fail(res, s.path)
		}
	}
	review := map[string]any{"rating": 5, "comment": "on time"}
	if res := r.call(ctx, http.MethodPost, "/api/matches/"+id+"/reviews", r.cfg.BuyerToken, review); res.status != http.StatusCreated {
		return fail(res, "review")
	}
	if res := r.call(ctx, http.MethodPost, "/api/matches/"+id+"/reviews", r.cfg.BuyerToken, review); res.status != http.StatusConflict {
		return fail(res, "duplicate review")
	}
	if res := r.call(ctx, http.MethodPost, "/api/matches/"+id+"/cancel", r.cfg.BuyerToken, nil); res.status != http.StatusConflict {
		return fail(res, "cancel after completion")
	}
	out := r.checkVersion(ctx, id, 7)
	out.Latency = time.Since(start)
	return out
}

type pair struct {
	listing string
	demand  string
}

// newPair creates a fresh listing and demand that can be matched.
func (r *Runner) newPair(ctx context.Context) (pair, *Result) {
	if r.cfg.FarmerToken == "" || r.cfg.BuyerToken == "" {
		return pair{}, &Result{Status: "SKIP", Note: "farmer and buyer tokens not set"}
	}
	var l, d struct {
		ID string `json:"id"`
	}
	res := r.call(ctx, http.MethodPost, "/api/listings", r.cfg.FarmerToken, map[string]any{
		"crop": "maize", "quantity": 1000, "price": "30", "location": map[string]any{"county": "Nakuru"},
	})
	if res.status != http.StatusCreated || res.decode(&l) != nil {
		out := fail(res, "create listing")
		return pair{}, &out
	}
	res = r.call(ctx, http.MethodPost, "/api/demands", r.cfg.BuyerToken, map[string]any{
		"crop": "maize", "quantity": 100, "price_offer": "32", "urgency": "normal", "location": map[string]any{"county": "Nairobi"},
	})
	if res.status != http.StatusCreated || res.decode(&d) != nil {
		out := fail(res, "create demand")
		return pair{}, &out
	}
	return pair{listing: l.ID, demand: d.ID}, nil
}

// newMatch opens a buyer-initiated match at version 1.
func (r *Runner) newMatch(ctx context.Context) (string, *Result) {
	p, out := r.newPair(ctx)
	if out != nil {
		return "", out
	}
	var m struct {
		ID string `json:"id"`
	}
	res := r.call(ctx, http.MethodPost, "/api/matches", r.cfg.BuyerToken, map[string]any{"listing_id": p.listing, "demand_id": p.demand})
	if res.status != http.StatusCreated || res.decode(&m) != nil {
		out := fail(res, "create match")
		return "", &out
	}
	return m.ID, nil
}

// checkVersion compares the match version with its event log over HTTP and,
// when a DSN is configured, directly in Postgres.
func (r *Runner) checkVersion(ctx context.Context, id string, want int) Result {
	var m struct {
		Version int `json:"version"`
	}
	var evs struct {
		Events []json.RawMessage `json:"events"`
	}
	res := r.call(ctx, http.MethodGet, "/api/matches/"+id, r.cfg.BuyerToken, nil)
	if res.status != http.StatusOK || res.decode(&m) != nil {
		return fail(res, "get match")
	}
	res = r.call(ctx, http.MethodGet, "/api/matches/"+id+"/events", r.cfg.BuyerToken, nil)
	if res.status != http.StatusOK || res.decode(&evs) != nil {
		return fail(res, "get events")
	}
	if m.Version != want || len(evs.Events) != want {
		return Result{Status: "FAIL", Note: fmt.Sprintf("version=%d events=%d want=%d", m.Version, len(evs.Events), want)}
	}
	if r.db != nil {
		var version, count int
		err := r.db.QueryRow(ctx,
			"SELECT m.version, (SELECT count(*) FROM match_events e WHERE e.match_id = m.id) FROM matches m WHERE m.id = $1",
			id,
		).Scan(&version, &count)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if version != count {
			return Result{Status: "FAIL", Note: fmt.Sprintf("db version=%d events=%d", version, count)}
		}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("version=%d", m.Version)}
}

type response struct {
	status  int
	body    []byte
	latency time.Duration
	err     error
}

func (res response) decode(v any) error {
	return json.Unmarshal(res.body, v)
}

func (r *Runner) call(ctx context.Context, method, path, token string, body any) response {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return response{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return response{err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return response{status: resp.StatusCode, body: b, latency: time.Since(start)}
}

func expect(res response, status int) Result {
	if res.err != nil {
		return Result{Status: "FAIL", Note: res.err.Error()}
	}
	if res.status != status {
		return fail(res, fmt.Sprintf("want %d", status))
	}
	return Result{Status: "PASS", Latency: res.latency, Note: fmt.Sprintf("status=%d", res.status)}
}

func fail(res response, step string) Result {
	if res.err != nil {
		return Result{Status: "FAIL", Note: step + ": " + res.err.Error()}
	}
	return Result{Status: "FAIL", Note: fmt.Sprintf("%s: status=%d body=%s", step, res.status, strings.TrimSpace(string(res.body)))}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

// race fires n transitions at version 1 together; exactly one may win and
// every loser must see 409.
func race(ctx context.Context, r *Runner, n int, target func(i int) (path, token string)) Result {
	start := make(chan struct{})
	wg := sync.WaitGroup{}
	succ, conflict, other := 0, 0, 0
	mu := sync.Mutex{}

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, token := target(i)
			<-start
			res := r.call(ctx, http.MethodPost, path, token, map[string]any{"expected_version": 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.status == http.StatusOK:
				succ++
			case res.status == http.StatusConflict:
				conflict++
			default:
				other++
			}
		}(i)
	}
	close(start)
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d other=%d", succ, conflict, other)
	if succ == 1 && conflict == n-1 {
		return Result{Status: "PASS", Note: note}
	}
	return Result{Status: "FAIL", Note: note}
}

func perfLoad(ctx context.Context, r *Runner, method, path, token string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				res := r.call(ctx, method, path, token, nil)
				mu.Lock()
				if res.err != nil || res.status >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
				if ctx.Err() != nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
