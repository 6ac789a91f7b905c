package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/voxelmind/go-perception/internal/belief"
	"github.com/voxelmind/go-perception/internal/config"
	"github.com/voxelmind/go-perception/internal/evidence"
	"github.com/voxelmind/go-perception/internal/feed"
	"github.com/voxelmind/go-perception/internal/journal"
	"github.com/voxelmind/go-perception/internal/reflex"
	"github.com/voxelmind/go-perception/internal/track"
	"google.golang.org/grpc"
)

// #region main

func main() {
	configPath := flag.String("config", "", "path to perception.yaml (optional)")
	botID := flag.String("bot", envOr("PERCEPTION_BOT_ID", "bot-local"), "bot identity")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	policy, err := cfg.CompilePolicy()
	if err != nil {
		log.Fatalf("compile threat policy: %v", err)
	}

	store, err := journal.NewStore(cfg.Journal.DBPath)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer store.Close()

	// Stream identity is fresh per process lifetime. The bus never derives
	// it; the restart nonce here is what keeps two consecutive sessions of
	// the same bot from being confused downstream.
	streamID := fmt.Sprintf("%s-%s", *botID, uuid.New().String()[:8])

	bus := belief.NewBus(*botID, streamID, cfg.BeliefConfig(), cfg.TrackConfig(), policy)
	arb := reflex.NewArbitrator(cfg.ArbitratorConfig())
	arb.Register(func(ev reflex.Event) {
		if err := store.AppendReflexEvent(ev); err != nil {
			log.Printf("journal reflex event: %v", err)
		}
	})

	sink := &busSink{
		bus:       bus,
		arb:       arb,
		store:     store,
		emitEvery: cfg.Bus.EmitEveryTicks,
	}
	srv := feed.NewServer(sink, sink, cfg.Feed.RawPassthrough)

	lis, err := net.Listen("tcp", cfg.Feed.ListenAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.Feed.ListenAddr, err)
	}
	g := grpc.NewServer()
	feed.RegisterServer(g, srv)

	log.Printf("busd ready: bot=%s stream=%s feed=%s journal=%s raw_passthrough=%v",
		*botID, streamID, cfg.Feed.ListenAddr, cfg.Journal.DBPath, cfg.Feed.RawPassthrough)

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-done
		g.GracefulStop()
	}()

	if err := g.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion main

// #region sink

// busSink bridges the feed endpoint onto the single-writer bus. gRPC
// handlers run concurrently; the mutex imposes the serialization the core
// requires.
type busSink struct {
	mu sync.Mutex

	bus       *belief.Bus
	arb       *reflex.Arbitrator
	store     *journal.Store
	emitEvery int64

	batchCount int64
	seq        int64
}

// HandleBatch runs one full pipeline step: journal the input, ingest it,
// advance the arbitrator, and on every emission boundary build and publish
// an envelope.
func (s *busSink) HandleBatch(ctx context.Context, batch evidence.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.AppendBatch(batch); err != nil {
		log.Printf("journal batch: %v", err)
	}

	deltas := s.bus.Ingest(batch)
	s.arb.TickUpdate(batch.TickID)

	// Reflex triggering keys off ingest, not the emission boundary: the
	// planner is gated the tick an acute threat lands. Level decides, not
	// delta variant; escalations past a track's first classification arrive
	// as threat_level_changed.
	for _, ev := range deltas {
		if ev.ThreatLevel >= track.ThreatHigh {
			s.arb.EnterReflex(ev.ClassLabel, batch.TickID, ev.ThreatLevel)
		}
	}

	s.batchCount++
	if s.batchCount%s.emitEvery != 0 {
		return nil
	}

	s.seq++
	env := s.bus.BuildEnvelope(s.seq)

	canon, err := env.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("emit seq %d: %w", s.seq, err)
	}
	if err := s.store.AppendEnvelope(env, batch.TickID); err != nil {
		log.Printf("journal envelope: %v", err)
	}

	// Envelopes go to the reasoning consumer as JSON lines on stdout.
	fmt.Println(string(canon))
	return nil
}

// HandleRaw publishes legacy raw detections. Only reachable behind the
// passthrough opt-in; the journal records each use so the escape hatch
// leaves an audit trail.
func (s *busSink) HandleRaw(ctx context.Context, tickID int64, raw []feed.RawDetection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.AppendDiagnostic("raw_passthrough", fmt.Sprintf("%d detections", len(raw)), tickID); err != nil {
		log.Printf("journal diagnostic: %v", err)
	}
	for _, r := range raw {
		fmt.Printf(`{"type":"raw_detection","tick":%d,"engine_id":%d,"kind":%q,"distance":%d}`+"\n",
			tickID, r.EngineID, r.Kind, r.Distance)
	}
	return nil
}

// #endregion sink
