// Package health exposes liveness/readiness HTTP endpoints for the
// settlement core, grounded directly on the teacher's
// producer/health.go handleHealth/handleReady/startHealthServer trio,
// generalized from a single Kafka-connectivity flag to the settlement
// core's broader dependency set (event bus, HSM, topology).
package health

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

// Status reports process liveness, independent of dependency health.
type Status struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// Readiness reports whether the service is ready to accept settlement
// traffic, broken down per dependency.
type Readiness struct {
	Ready        bool      `json:"ready"`
	Service      string    `json:"service"`
	Timestamp    time.Time `json:"timestamp"`
	EventBusUp   bool      `json:"event_bus_up"`
	HSMUp        bool      `json:"hsm_up"`
	TopologyUp   bool      `json:"topology_loaded"`
}

// Checker tracks dependency readiness flags with atomic int32s, matching
// the teacher's kafkaHealthy/configLoaded/kafkaReady/liquidityReady
// pattern (one flag per dependency). The flags change only through the
// SetXUp setters; no background monitor updates them.
type Checker struct {
	service   string
	startedAt time.Time

	eventBusUp int32
	hsmUp      int32
	topologyUp int32
}

// New constructs a Checker for the named service.
func New(service string) *Checker {
	return &Checker{service: service, startedAt: time.Now()}
}

func (c *Checker) SetEventBusUp(up bool)  { storeFlag(&c.eventBusUp, up) }
func (c *Checker) SetHSMUp(up bool)       { storeFlag(&c.hsmUp, up) }
func (c *Checker) SetTopologyUp(up bool)  { storeFlag(&c.topologyUp, up) }

func storeFlag(flag *int32, up bool) {
	if up {
		atomic.StoreInt32(flag, 1)
	} else {
		atomic.StoreInt32(flag, 0)
	}
}

func loadFlag(flag *int32) bool { return atomic.LoadInt32(flag) == 1 }

// ServeHealth answers a liveness probe -- always 200 while the process is
// up and serving requests.
func (c *Checker) ServeHealth(w http.ResponseWriter, r *http.Request) {
	status := Status{
		Status:    "healthy",
		Service:    c.service,
		Timestamp: time.Now(),
		Uptime:    time.Since(c.startedAt).String(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ServeReady answers a readiness probe -- 503 until every tracked
// dependency reports up, matching the teacher's handleReady gate.
func (c *Checker) ServeReady(w http.ResponseWriter, r *http.Request) {
	eventBus := loadFlag(&c.eventBusUp)
	hsm := loadFlag(&c.hsmUp)
	topology := loadFlag(&c.topologyUp)
	ready := eventBus && hsm && topology

	status := Readiness{
		Ready:      ready,
		Service:    c.service,
		Timestamp:  time.Now(),
		EventBusUp: eventBus,
		HSMUp:      hsm,
		TopologyUp: topology,
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// Serve starts the health/readiness HTTP server on addr in a background
// goroutine, matching the teacher's startHealthServer.
func (c *Checker) Serve(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", c.ServeHealth)
	mux.HandleFunc("/ready", c.ServeReady)

	go func() {
		log.Printf("[health] check server starting on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("[health] server error: %v", err)
		}
	}()
}
