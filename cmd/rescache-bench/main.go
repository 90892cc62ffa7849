// rescache-bench drives a synthetic read/write workload against a cache
// Manager and reports per-partition statistics. Useful for sizing partition
// policies before changing the production config.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/triagekit/rescache/cache"
)

var (
	configPath string
	workers    int
	ops        int
	keySpace   int
	hotRatio   float64
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "rescache-bench",
		Short: "Synthetic workload driver for the response cache",
		Long: `rescache-bench runs concurrent workers against a partitioned cache
manager. Each worker reads incidents and search results through the typed
accessors, populates on miss, and periodically invalidates, mimicking the
route-handler access pattern. Partition policies can be loaded from the same
YAML file the service uses.`,
		RunE: run,
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "partition policy YAML (defaults built in)")
	root.Flags().IntVarP(&workers, "workers", "w", 8, "concurrent workers")
	root.Flags().IntVarP(&ops, "ops", "n", 100000, "total operations")
	root.Flags().IntVar(&keySpace, "keys", 2000, "distinct incident ids")
	root.Flags().Float64Var(&hotRatio, "hot", 0.8, "fraction of reads aimed at the hottest 10% of keys")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if workers <= 0 {
		return fmt.Errorf("--workers must be positive, got %d", workers)
	}
	if keySpace <= 0 {
		return fmt.Errorf("--keys must be positive, got %d", keySpace)
	}
	if ops <= 0 {
		return fmt.Errorf("--ops must be positive, got %d", ops)
	}

	log := zap.NewNop()
	if verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer log.Sync()
	}

	opts := []cache.ManagerOption{cache.WithLogger(log)}
	if configPath != "" {
		policies, err := cache.LoadPolicies(configPath)
		if err != nil {
			return err
		}
		opts = append(opts, cache.WithPolicies(policies))
	}

	ctx := cmd.Context()
	mgr := cache.NewManager(ctx, opts...)
	defer mgr.Close()

	ids := make([]string, keySpace)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	hot := ids[:max(1, keySpace/10)]

	start := time.Now()
	g, _ := errgroup.WithContext(ctx)
	perWorker := ops / workers
	for w := 0; w < workers; w++ {
		seed := int64(w + 1)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < perWorker; i++ {
				id := pick(rng, ids, hot)
				switch {
				case i%97 == 0:
					mgr.InvalidateIncident(id)
				case i%11 == 0:
					filters := map[string]any{"status": "open", "severity": rng.Intn(4)}
					if _, ok, err := cache.CachedSearchResults[[]string](mgr, "bench", filters); err != nil {
						return err
					} else if !ok {
						if err := mgr.CacheSearchResults("bench", filters, []string{id}); err != nil {
							return err
						}
					}
				default:
					if _, ok := cache.CachedIncident[string](mgr, id); !ok {
						mgr.CacheIncident(id, "payload-"+id)
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	report(cmd, mgr.Stats(), elapsed)
	return nil
}

func pick(rng *rand.Rand, ids, hot []string) string {
	if rng.Float64() < hotRatio {
		return hot[rng.Intn(len(hot))]
	}
	return ids[rng.Intn(len(ids))]
}

func report(cmd *cobra.Command, stats map[string]cache.Stats, elapsed time.Duration) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	cmd.Printf("%d ops across %d workers in %s (%.0f ops/s)\n\n",
		ops, workers, elapsed.Round(time.Millisecond),
		float64(ops)/elapsed.Seconds())
	cmd.Printf("%-12s %8s %8s %10s %10s %8s %10s\n",
		"partition", "size", "max", "hits", "misses", "rate", "mem")
	for _, name := range names {
		s := stats[name]
		cmd.Printf("%-12s %8d %8d %10d %10d %7.1f%% %9dK\n",
			name, s.Size, s.MaxSize, s.Hits, s.Misses, s.HitRate, s.MemoryBytes/1024)
	}
}
