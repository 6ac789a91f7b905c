package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/voxelmind/go-perception/internal/journal"
)

// #region main

func main() {
	dbPath := flag.String("db", envOr("PERCEPTION_DB", "perception_journal.db"), "path to perception journal")
	limit := flag.Int("limit", 20, "max rows per section")
	showReflex := flag.Bool("reflex", true, "show reflex events")
	showDiag := flag.Bool("diag", true, "show diagnostics")
	flag.Parse()

	store, err := journal.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		os.Exit(2)
	}
	defer store.Close()

	if err := printEnvelopes(store, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if *showReflex {
		if err := printReflexEvents(store, *limit); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}
	if *showDiag {
		if err := printDiagnostics(store, *limit); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion main

// #region sections

func printEnvelopes(store *journal.Store, limit int) error {
	rows, err := store.ListEnvelopes(limit)
	if err != nil {
		return err
	}
	fmt.Printf("== envelopes (%d) ==\n", len(rows))
	for _, r := range rows {
		fmt.Printf("seq=%-4d tick=%-6d events=%-3d bot=%s stream=%s\n", r.Seq, r.TickID, r.EventCount, r.BotID, r.StreamID)
		fmt.Printf("  %s\n", r.Payload)
	}
	return nil
}

func printReflexEvents(store *journal.Store, limit int) error {
	rows, err := store.ListReflexEvents(limit)
	if err != nil {
		return err
	}
	fmt.Printf("\n== reflex events (%d) ==\n", len(rows))
	for _, r := range rows {
		fmt.Printf("tick=%-6d %-12s remaining=%-3d reason=%s\n", r.TickID, r.EventType, r.RemainingTicks, r.Reason)
	}
	return nil
}

func printDiagnostics(store *journal.Store, limit int) error {
	rows, err := store.DB().Query(
		`SELECT kind, COALESCE(detail, ''), tick_id, created_at FROM diagnostics ORDER BY id ASC LIMIT ?`, limit,
	)
	if err != nil {
		return fmt.Errorf("list diagnostics: %w", err)
	}
	defer rows.Close()

	fmt.Println("\n== diagnostics ==")
	for rows.Next() {
		var kind, detail, createdAt string
		var tickID int64
		if err := rows.Scan(&kind, &detail, &tickID, &createdAt); err != nil {
			return fmt.Errorf("scan diagnostic: %w", err)
		}
		fmt.Printf("tick=%-6d %-20s %s\n", tickID, kind, detail)
	}
	return rows.Err()
}

// #endregion sections
