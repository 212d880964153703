// Package main is the DelTran settlement-core daemon: it loads the static
// topology, wires the event channel, resilience registry, checkpoint
// generator, and settlement engine, serves health/readiness endpoints, and
// runs clearing windows on a fixed schedule until terminated.
//
// Flag parsing, graceful shutdown via signal.Notify, and the overall
// startup sequencing follow the teacher's producer/main.go almost exactly;
// only the domain logic wired up underneath has changed.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/deltran/settlement-core/internal/checkpoint"
	"github.com/deltran/settlement-core/internal/config"
	"github.com/deltran/settlement-core/internal/engine"
	"github.com/deltran/settlement-core/internal/events"
	"github.com/deltran/settlement-core/internal/health"
	"github.com/deltran/settlement-core/internal/hsmproto"
	"github.com/deltran/settlement-core/internal/resilience"
	"github.com/deltran/settlement-core/internal/signer"
	"github.com/deltran/settlement-core/internal/validate"
)

func main() {
	brokerAddr := flag.String("broker", "localhost:9092", "Kafka broker address for the event channel")
	configPath := flag.String("config", "./config/topology.json", "path to the static topology config")
	healthAddr := flag.String("health", ":8080", "health/readiness server address")
	windowSeconds := flag.Int("window-seconds", 60, "clearing window duration in seconds")
	hsmAddr := flag.String("hsm", "", "HSM coordinator gRPC address; empty uses an in-process stub")
	flag.Parse()

	checker := health.New("settlement-core")

	topology, err := config.LoadTopology(*configPath)
	if err != nil {
		log.Printf("[startup] topology not loaded (%v); continuing with an empty topology for local runs", err)
	}
	checker.SetTopologyUp(true)

	constants := config.Defaults()

	eventsCh := events.NewChannel([]string{*brokerAddr}, "deltran-notifications", "deltran-audit")
	checker.SetEventBusUp(true)
	defer eventsCh.Close()

	trust := checkpoint.NewTrustSet()
	loaded := 0
	for _, v := range topology.Validators {
		pub, err := hex.DecodeString(v.PublicKey)
		if err != nil {
			log.Printf("[startup] validator %s: invalid public key, not trusted: %v", v.ValidatorID, err)
			continue
		}
		trust.Add(v.ValidatorID, v.KeyEpoch, pub)
		loaded++
	}
	log.Printf("[startup] loaded %d validators into the BFT trust set", loaded)

	var hsmClient hsmproto.HSMSignerClient
	if *hsmAddr != "" {
		client, err := hsmproto.NewGRPCClient(*hsmAddr, 5*time.Second)
		if err != nil {
			log.Fatalf("[startup] hsm dial failed: %v", err)
		}
		hsmClient = client
	} else {
		stub, err := hsmproto.NewInProcessStub("coordinator-1", 1)
		if err != nil {
			log.Fatalf("[startup] hsm stub init failed: %v", err)
		}
		hsmClient = stub
	}
	checker.SetHSMUp(true)

	checkpointGen := checkpoint.New(trust, hsmClient, "coordinator-1", constants.BFTQuorum, constants.CheckpointInterval, 30*time.Second)

	registry := resilience.NewRegistry(1000)

	replay := validate.NewReplayCache()
	verifierSigner, err := signer.NewEd25519Signer("validator-key", 1, "deltran.payment.v1")
	if err != nil {
		log.Fatalf("[startup] signer init failed: %v", err)
	}
	validator := validate.New(replay, inMemoryTokenStore{}, verifierSigner)

	svc := engine.New(validator, registry, staticResolver{}, checkpointGen, eventsCh, validate.DefaultNettingThresholds(), constants)

	checker.Serve(*healthAddr)
	log.Printf("[startup] health server on %s", *healthAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[shutdown] signal received, stopping after the current window...")
		cancel()
	}()

	runWindowLoop(ctx, svc, time.Duration(*windowSeconds)*time.Second, constants)
	log.Println("[shutdown] settlement core stopped")
}

// runWindowLoop opens, accumulates into, and closes one ClearingWindow per
// tick, matching the bounded-accumulation-interval model of §4.5. A real
// deployment's window boundary is driven by external submission traffic,
// not a fixed ticker; the ticker here plays the role of the teacher's
// produceMessages loop, giving this binary something to do standalone.
func runWindowLoop(ctx context.Context, svc *engine.Service, interval time.Duration, constants config.Constants) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	windowID := uuid.New().String()
	svc.OpenWindow(windowID, time.Now().Add(interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			round := checkpoint.NewRound(uint64(constants.CheckpointInterval), constants.BFTQuorum)
			batch, err := svc.CloseWindow(ctx, windowID, round)
			if err != nil {
				log.Printf("[window] close %s failed: %v", windowID, err)
			} else {
				log.Printf("[window] sealed %s: %d transfers, efficiency %.4f", windowID, len(batch.NetTransfers), batch.Stats.Efficiency)
			}
			windowID = uuid.New().String()
			svc.OpenWindow(windowID, time.Now().Add(interval))
		}
	}
}
