package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/store"
	"github.com/pzverkov/quantum-agility/pkg/workspace"
)

// Standard streams, replaced in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

func initCommand(args []string) error {
	fs, f := newFlagSet("init", "Create a ledger in the data directory and seal its key ring with the passphrase.")
	kem := fs.String("kem", "", "KEM mode (default from config)")
	sig := fs.String("sig", "", "Signature mode (default from config)")
	open := fs.Bool("open", false, "Store plaintext in the clear (mercy-open ledger)")
	_ = fs.Parse(args)

	a, err := f.app()
	if err != nil {
		return err
	}
	if *kem != "" {
		a.cfg.KEMMode = *kem
	}
	if *sig != "" {
		a.cfg.SigMode = *sig
	}
	if *open {
		a.cfg.Confidential = false
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	pass, err := f.passphrase(a.cfg)
	if err != nil {
		return err
	}

	l, err := workspace.Init(context.Background(), a.cfg, pass, a.options())
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	kemMode, sigMode := l.Modes()
	fmt.Fprintf(stdout, "✓ Ledger %s created in %s\n", l.ID(), a.cfg.DataDir)
	fmt.Fprintf(stdout, "  KEM mode:       %s\n", kemMode)
	fmt.Fprintf(stdout, "  Signature mode: %s\n", sigMode)
	fmt.Fprintf(stdout, "  Confidential:   %t\n", l.Confidential())
	return nil
}

func commitCommand(args []string) error {
	fs, f := newFlagSet("commit", "Append an entry. The payload is read from --file, --message or standard input.")
	file := fs.String("file", "", "Read the payload from this file")
	message := fs.String("m", "", "Use this string as the payload")
	_ = fs.Parse(args)

	var (
		payload []byte
		err     error
	)
	switch {
	case *message != "":
		payload = []byte(*message)
	case *file != "":
		payload, err = os.ReadFile(*file)
	default:
		payload, err = io.ReadAll(stdin)
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	ctx := context.Background()
	_, l, err := f.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	index, err := l.Commit(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d\n", index)
	return nil
}

func readCommand(args []string) error {
	fs, f := newFlagSet("read", "Decrypt an entry and write its plaintext to standard output.")
	index := fs.Int64("index", -1, "Entry index (default latest)")
	out := fs.String("o", "", "Write to this file instead of standard output")
	_ = fs.Parse(args)

	ctx := context.Background()
	_, l, err := f.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	var plaintext []byte
	if *index < 0 {
		plaintext, err = l.ReadLatest(ctx)
	} else {
		plaintext, err = l.ReadEntry(ctx, uint64(*index))
	}
	if err != nil {
		return err
	}
	if *out != "" {
		return os.WriteFile(*out, plaintext, 0o600)
	}
	_, err = stdout.Write(plaintext)
	return err
}

func logCommand(args []string) error {
	fs, f := newFlagSet("log", "List entries with the era each one was written in. No key material is used.")
	_ = fs.Parse(args)

	ctx := context.Background()
	_, l, err := f.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	writeLog(stdout, l.Entries())
	return nil
}

func writeLog(w io.Writer, entries []*ledger.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tCOMMITTED\tKEM\tSIGNATURE\tPAYLOAD")
	for _, e := range entries {
		visibility := "sealed"
		if e.MercyOpen {
			visibility = "open"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s@%d\t%s@%d\t%s\n",
			e.Index,
			e.CommittedAt.UTC().Format(time.RFC3339),
			e.KEMMode, e.KEMEpoch,
			e.SigMode, e.SigEpoch,
			visibility)
	}
	_ = tw.Flush()
}

func statusCommand(args []string) error {
	fs, f := newFlagSet("status", "Show ledger identity, current modes, epochs and chain tip.")
	_ = fs.Parse(args)

	ctx := context.Background()
	a, l, err := f.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	s := statusOf(l)
	fmt.Fprintf(stdout, "Ledger:         %s\n", s.ID)
	fmt.Fprintf(stdout, "Backend:        %s (%s)\n", a.cfg.Backend, a.cfg.DataDir)
	fmt.Fprintf(stdout, "Entries:        %d\n", s.Entries)
	fmt.Fprintf(stdout, "KEM mode:       %s (epoch %d)\n", s.KEMMode, s.KEMEpoch)
	fmt.Fprintf(stdout, "Signature mode: %s (epoch %d)\n", s.SigMode, s.SigEpoch)
	fmt.Fprintf(stdout, "Confidential:   %t\n", s.Confidential)
	fmt.Fprintf(stdout, "Tip:            %s\n", s.Tip)
	return nil
}

func verifyCommand(args []string) error {
	fs, f := newFlagSet("verify", "Replay the hash chain and check every signature against its era's key.")
	_ = fs.Parse(args)

	ctx := context.Background()
	_, l, err := f.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	start := time.Now()
	if err := l.VerifyChainErr(ctx); err != nil {
		fmt.Fprintf(stdout, "✗ Verification failed after %v\n", time.Since(start).Round(time.Millisecond))
		return err
	}
	fmt.Fprintf(stdout, "✓ %d entries verified in %v\n", l.Len(), time.Since(start).Round(time.Millisecond))
	return nil
}

func migrateCommand(args []string) error {
	fs, f := newFlagSet("migrate", "Generate keys for a new mode. Entries already written keep their era's keys.")
	kem := fs.String("kem", "", "New KEM mode")
	sig := fs.String("sig", "", "New signature mode")
	_ = fs.Parse(args)

	if *kem == "" && *sig == "" {
		return qerrors.NewConfigError("migrate", "", errors.New("pass --kem, --sig or both"))
	}
	var (
		kemMode hybridkem.Mode
		sigMode hybridsig.Mode
		err     error
	)
	if *kem != "" {
		if kemMode, err = hybridkem.ParseMode(*kem); err != nil {
			return err
		}
	}
	if *sig != "" {
		if sigMode, err = hybridsig.ParseMode(*sig); err != nil {
			return err
		}
	}

	ctx := context.Background()
	_, l, err := f.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	if *kem != "" {
		epoch, err := l.MigrateKEM(ctx, kemMode)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ KEM mode %s (epoch %d)\n", kemMode, epoch)
	}
	if *sig != "" {
		epoch, err := l.MigrateSignature(ctx, sigMode)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ Signature mode %s (epoch %d)\n", sigMode, epoch)
	}
	return nil
}

func retireCommand(args []string) error {
	fs, f := newFlagSet("retire", "Erase the secret key of a past KEM epoch. Its sealed entries become unreadable.")
	epoch := fs.Uint("epoch", 0, "KEM epoch to retire")
	_ = fs.Parse(args)

	if *epoch == 0 {
		return qerrors.NewConfigError("epoch", "0", errors.New("required"))
	}

	ctx := context.Background()
	_, l, err := f.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	if err := l.RetireKEMEpoch(ctx, uint32(*epoch)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ KEM epoch %d retired\n", *epoch)
	return nil
}

func exportCommand(args []string) error {
	fs, f := newFlagSet("export", "Write the stored entries and state as an xz archive. Keys are not included.")
	out := fs.String("o", "", "Archive path (default standard output)")
	_ = fs.Parse(args)

	a, err := f.app()
	if err != nil {
		return err
	}
	st, err := workspace.OpenStore(a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	w := stdout
	if *out != "" {
		file, err := os.OpenFile(*out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		w = file
	}
	if err := store.Export(context.Background(), st, w); err != nil {
		return err
	}
	if *out != "" {
		fmt.Fprintf(os.Stderr, "✓ Archive written to %s\n", *out)
	}
	return nil
}

func importCommand(args []string) error {
	fs, f := newFlagSet("import", "Load an archive into an empty store. Copy the key file alongside to open the result.")
	in := fs.String("i", "", "Archive path (default standard input)")
	_ = fs.Parse(args)

	a, err := f.app()
	if err != nil {
		return err
	}
	r := stdin
	if *in != "" {
		file, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		r = file
	}

	st, err := workspace.OpenStore(a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	n, err := store.Import(context.Background(), st, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Imported %d entries into %s\n", n, a.cfg.DataDir)
	if !workspace.Exists(a.cfg) {
		fmt.Fprintf(stdout, "  Copy the key file to %s to open the ledger\n", a.cfg.KeyFilePath())
	}
	return nil
}

// status is the JSON and text view of a ledger.
type status struct {
	ID           string `json:"id"`
	Entries      int    `json:"entries"`
	KEMMode      string `json:"kem_mode"`
	KEMEpoch     uint32 `json:"kem_epoch"`
	SigMode      string `json:"sig_mode"`
	SigEpoch     uint32 `json:"sig_epoch"`
	Confidential bool   `json:"confidential"`
	Tip          string `json:"tip"`
}

func statusOf(l *ledger.Ledger) status {
	kem, sig := l.Modes()
	kemEpoch, sigEpoch := l.Epochs()
	return status{
		ID:           l.ID().String(),
		Entries:      l.Len(),
		KEMMode:      kem.String(),
		KEMEpoch:     kemEpoch,
		SigMode:      sig.String(),
		SigEpoch:     sigEpoch,
		Confidential: l.Confidential(),
		Tip:          hex.EncodeToString(l.Tip()),
	}
}

func parseIndex(s string) (uint64, error) {
	i, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, qerrors.NewConfigError("index", s, err)
	}
	return i, nil
}
