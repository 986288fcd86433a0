package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
)

func benchCommand(args []string) error {
	fs, _ := newFlagSet("bench", "Benchmark an in-memory ledger for each KEM and signature mode pair.")
	entries := fs.Int("n", 20, "Entries committed per mode pair")
	sizeStr := fs.String("size", "4KB", "Payload size (e.g. 512, 4KB, 1MB)")
	kems := fs.String("kem", "legacy,hybrid-lattice,quantum-safe-lattice", "Comma-separated KEM modes")
	sigs := fs.String("sig", "hybrid-lattice-dsa", "Comma-separated signature modes")
	_ = fs.Parse(args)

	if *entries <= 0 {
		return fmt.Errorf("--n must be positive")
	}
	size := parseSize(*sizeStr)

	var pairs []benchPair
	for _, k := range splitList(*kems) {
		kem, err := hybridkem.ParseMode(k)
		if err != nil {
			return err
		}
		for _, s := range splitList(*sigs) {
			sig, err := hybridsig.ParseMode(s)
			if err != nil {
				return err
			}
			pairs = append(pairs, benchPair{kem: kem, sig: sig})
		}
	}

	fmt.Fprintln(stdout, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintln(stdout, "║      PQ-Ledger Benchmark                                  ║")
	fmt.Fprintln(stdout, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintf(stdout, "\n%d entries of %s per mode pair\n\n", *entries, formatSize(size))

	results := make([]benchResult, 0, len(pairs))
	for i, p := range pairs {
		fmt.Fprintf(stdout, "Progress: %d/%d %s + %s\n", i+1, len(pairs), p.kem, p.sig)
		r, err := benchLedger(context.Background(), p, *entries, int(size))
		if err != nil {
			return fmt.Errorf("%s + %s: %w", p.kem, p.sig, err)
		}
		results = append(results, r)
	}
	fmt.Fprintln(stdout)
	printBenchResults(results)
	return nil
}

type benchPair struct {
	kem hybridkem.Mode
	sig hybridsig.Mode
}

type benchResult struct {
	benchPair
	commit time.Duration // mean per entry
	read   time.Duration // mean per entry
	verify time.Duration // whole chain
	bytes  int           // mean stored entry size
}

func benchLedger(ctx context.Context, p benchPair, n, size int) (benchResult, error) {
	l, err := ledger.New(ctx, ledger.Options{
		KEMMode:      p.kem,
		SigMode:      p.sig,
		Confidential: true,
		Logger:       metrics.NullLogger(),
		Collector:    metrics.NewCollector(nil),
	})
	if err != nil {
		return benchResult{}, err
	}
	defer func() { _ = l.Close() }()

	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i % 256)
	}

	r := benchResult{benchPair: p}
	start := time.Now()
	for i := 0; i < n; i++ {
		if _, err := l.Commit(ctx, payload); err != nil {
			return r, err
		}
	}
	r.commit = time.Since(start) / time.Duration(n)

	start = time.Now()
	for i := 0; i < n; i++ {
		if _, err := l.ReadEntry(ctx, uint64(i)); err != nil {
			return r, err
		}
	}
	r.read = time.Since(start) / time.Duration(n)

	start = time.Now()
	if err := l.VerifyChainErr(ctx); err != nil {
		return r, err
	}
	r.verify = time.Since(start)

	var total int
	for _, e := range l.Entries() {
		raw, err := e.MarshalBinary()
		if err != nil {
			return r, err
		}
		total += len(raw)
	}
	r.bytes = total / n
	return r, nil
}

func printBenchResults(results []benchResult) {
	fmt.Fprintln(stdout, "Results:")
	fmt.Fprintln(stdout, strings.Repeat("─", 60))
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEM\tSIGNATURE\tCOMMIT\tREAD\tVERIFY\tENTRY SIZE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%v\t%v\t%s\n", r.kem, r.sig,
			r.commit.Round(time.Microsecond), r.read.Round(time.Microsecond),
			r.verify.Round(time.Microsecond), formatSize(int64(r.bytes)))
	}
	_ = tw.Flush()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseSize(s string) int64 {
	// Simple parser for sizes like "512", "4KB", "1MB"
	var value int64
	var unit string
	_, _ = fmt.Sscanf(s, "%d%s", &value, &unit)

	switch unit {
	case "KB", "kb", "K", "k":
		return value * 1024
	case "MB", "mb", "M", "m":
		return value * 1024 * 1024
	default:
		return value
	}
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.2f %s", float64(bytes)/float64(div), units[exp])
}
