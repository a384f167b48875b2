// Command goguard-loadtest drives Issue, Validate and Refresh under
// concurrency against Redis (or an embedded miniredis) and reports
// throughput, latency percentiles and failures by kind.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/confloader"
	promexport "github.com/MrEthical07/goGuard/metrics/export/prometheus"
)

type options struct {
	principals  int
	concurrency int
	ops         int
	redisAddr   string
	configFile  string
	metricsAddr string
	contend     bool
}

type principalState struct {
	id      string
	mu      sync.Mutex
	refresh atomic.Pointer[string]
}

func main() {
	var opts options
	fs := pflag.NewFlagSet("goguard-loadtest", pflag.ExitOnError)
	fs.IntVar(&opts.principals, "principals", 10000, "number of principals to issue sessions for")
	fs.IntVarP(&opts.concurrency, "concurrency", "c", 256, "number of concurrent workers")
	fs.IntVarP(&opts.ops, "ops", "n", 100000, "operations per phase (validate, refresh)")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; REDIS_ADDR or an embedded miniredis when empty")
	fs.StringVar(&opts.configFile, "config", "", "YAML config file")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	fs.BoolVar(&opts.contend, "contend", false, "let workers refresh the same principal concurrently")
	_ = fs.Parse(os.Args[1:])

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "goguard-loadtest:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.principals <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("principals, concurrency and ops must be > 0")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	overrides := map[string]any{}
	if os.Getenv("GOGUARD_JWT__SECRET") == "" {
		overrides["jwt.secret"] = "goguard-loadtest-secret-0123456789"
	}
	// Every principal holds exactly one session during the run.
	overrides["session.max_sessions"] = 0
	cfg, err := confloader.LoadConfig(
		confloader.WithConfigFile(opts.configFile),
		confloader.WithOverrides(overrides),
	)
	if err != nil {
		return err
	}

	logger, err := confloader.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	client, cleanup, err := connect(opts.redisAddr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := goGuard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if opts.metricsAddr != "" {
		srv := &http.Server{Addr: opts.metricsAddr, Handler: promexport.Handler(engine), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", opts.metricsAddr)
	}

	states := make([]*principalState, opts.principals)
	access := make([]string, opts.principals)
	issueStats := runPhase(ctx, opts.principals, opts.concurrency, func(_ *rand.Rand, i int) error {
		st := &principalState{id: fmt.Sprintf("lt-%d", i)}
		pair, err := engine.Issue(ctx, st.id)
		if err != nil {
			return err
		}
		st.refresh.Store(&pair.RefreshToken)
		states[i] = st
		access[i] = pair.AccessToken
		return nil
	})

	validateStats := runPhase(ctx, opts.ops, opts.concurrency, func(r *rand.Rand, _ int) error {
		tok := access[r.IntN(len(access))]
		if tok == "" {
			return errSkipped
		}
		_, err := engine.Validate(ctx, tok)
		return err
	})

	refreshStats := runPhase(ctx, opts.ops, opts.concurrency, func(r *rand.Rand, _ int) error {
		st := states[r.IntN(len(states))]
		if st == nil {
			return errSkipped
		}
		if !opts.contend {
			st.mu.Lock()
			defer st.mu.Unlock()
		}
		pair, err := engine.Refresh(ctx, *st.refresh.Load())
		if err != nil {
			return err
		}
		st.refresh.Store(&pair.RefreshToken)
		return nil
	})

	fmt.Println("---- results ----")
	printStats("issue", issueStats)
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: sessions=%d refresh_contention=%d audit_dropped=%d\n",
		snap.Counters[goGuard.MetricSessionCreated],
		snap.Counters[goGuard.MetricRefreshContention],
		engine.AuditDropped(),
	)
	return nil
}

func connect(addr string, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		logger.Info("using redis", "addr", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	logger.Info("using embedded miniredis", "addr", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

var errSkipped = errors.New("skipped")

type phaseStats struct {
	total    time.Duration
	ops      int
	failures map[string]int
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func runPhase(ctx context.Context, ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
		failures  = map[string]int{}
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(worker)*7919))
			for {
				i := int(cursor.Add(1)) - 1
				if i >= ops || ctx.Err() != nil {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				if err != nil {
					failures[failureKind(err)]++
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, errSkipped):
		return "skipped"
	case errors.Is(err, goGuard.ErrLockContention):
		return "lock_contention"
	case errors.Is(err, goGuard.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, goGuard.ErrTokenExpired):
		return "expired"
	case errors.Is(err, goGuard.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, goGuard.ErrTokenSuperseded):
		return "superseded"
	case errors.Is(err, goGuard.ErrMalformedToken):
		return "malformed"
	case errors.Is(err, goGuard.ErrSessionLimitReached):
		return "session_limit"
	default:
		return "other"
	}
}

func computeStats(total time.Duration, samples []time.Duration, failures map[string]int) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s failures=%s\n",
		name,
		s.ops,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
		formatFailures(s.failures),
	)
}

func formatFailures(f map[string]int) string {
	if len(f) == 0 {
		return "none"
	}
	kinds := make([]string, 0, len(f))
	for k := range f {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, f[k])
	}
	return strings.Join(parts, ",")
}
