// Command settlement-reconcile is the operator-facing reconciliation tool
// for orphaned payment intents. It streams the processor's gzipped
// settlement exports, collects settled intent ids (deduped across exports
// with bloom filters), and reports two classes of inconsistency against the
// order store:
//
//   - settled intents with no order row (an intent was created but the
//     order insert failed), and
//   - orders still Pending even though their intent has settled (a lost or
//     never-delivered confirmation callback).
//
// The tool is read-only; fixing an inconsistency stays a human decision.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/karat-checkout/internal/domain/order"
	"github.com/xenking/karat-checkout/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// settledIntent is one row of a settlement export:
// intent_id,payment_id,amount_minor_units.
type settledIntent struct {
	IntentID  string
	PaymentID string
}

func main() {
	var (
		exportsDir  string
		databaseURL string
		pendingAge  time.Duration
	)

	flag.StringVar(&exportsDir, "exports-dir", "exports", "directory containing settlement-*.csv.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.DurationVar(&pendingAge, "pending-age", time.Hour, "only report Pending orders older than this")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, exportsDir, databaseURL, pendingAge); err != nil {
		slog.Error("settlement reconcile failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("settlement reconcile completed")
}

func run(ctx context.Context, exportsDir, databaseURL string, pendingAge time.Duration) error {
	files, err := filepath.Glob(filepath.Join(exportsDir, "settlement-*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "glob exports")
	}
	if len(files) == 0 {
		return errors.Errorf("no settlement exports found in %s", exportsDir)
	}

	slog.Info("collecting settled intents", slog.Int("files", len(files)))

	settled, err := collectSettledIntents(ctx, files)
	if err != nil {
		return errors.Wrap(err, "collect settled intents")
	}

	slog.Info("settled intents collected", slog.Int("count", len(settled)))

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return reconcile(ctx, repository.NewOrderRepository(pool), settled, pendingAge)
}

// collectSettledIntents streams all export files concurrently. A shared
// bloom filter skips intent ids already seen in earlier exports; a bloom
// false positive only suppresses a duplicate report line, it can never
// corrupt the store.
func collectSettledIntents(ctx context.Context, files []string) ([]settledIntent, error) {
	var (
		mu      sync.Mutex
		seen    = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		settled []settledIntent
	)

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			var count uint64
			err := streamGzFile(ctx, f, func(line string) error {
				count++
				if count%progressEvery == 0 {
					slog.Info("export progress", slog.Int("file", i+1), slog.Uint64("lines", count))
				}

				entry, ok := parseExportLine(line)
				if !ok {
					return nil
				}

				mu.Lock()
				defer mu.Unlock()
				if seen.TestOrAddString(entry.IntentID) {
					return nil
				}
				settled = append(settled, entry)
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "stream export %s", f)
			}

			slog.Info("export complete", slog.Int("file", i+1), slog.Uint64("lines", count))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return settled, nil
}

// parseExportLine splits "intent_id,payment_id,amount" and keeps the ids.
// Header lines and blanks are skipped.
func parseExportLine(line string) (settledIntent, bool) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 2 || fields[0] == "" || fields[0] == "intent_id" {
		return settledIntent{}, false
	}
	return settledIntent{IntentID: fields[0], PaymentID: fields[1]}, true
}

// reconcile checks every settled intent against the order store and reports
// inconsistencies.
func reconcile(ctx context.Context, orders *repository.OrderRepository, settled []settledIntent, pendingAge time.Duration) error {
	var orphaned, stuck int
	cutoff := time.Now().Add(-pendingAge)

	for _, entry := range settled {
		if err := ctx.Err(); err != nil {
			return err
		}

		o, err := orders.FindByIntentID(ctx, entry.IntentID)
		switch {
		case errors.Is(err, order.ErrNotFound):
			orphaned++
			fmt.Printf("ORPHANED\t%s\tpayment=%s\tno order row\n", entry.IntentID, entry.PaymentID)
		case err != nil:
			return errors.Wrapf(err, "look up intent %s", entry.IntentID)
		case o.Status == order.StatusPending && o.CreatedAt.Before(cutoff):
			stuck++
			fmt.Printf("STUCK\t%s\tpayment=%s\torder=%s\towner=%s\tamount=%s\tage=%s\n",
				entry.IntentID, entry.PaymentID, o.ID, o.OwnerID, o.Total, time.Since(o.CreatedAt).Round(time.Minute))
		}
	}

	slog.Info("reconciliation report",
		slog.Int("settled", len(settled)),
		slog.Int("orphaned_intents", orphaned),
		slog.Int("stuck_pending_orders", stuck),
	)
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
