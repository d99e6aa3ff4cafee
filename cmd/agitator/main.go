// Package main - agitator
// Load generator for the display channel: many concurrent websocket clients
// issuing display requests and measuring round trips.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/tokenprofile/internal/network"
)

// Config for the agitator
type Config struct {
	ServerURL       string
	NumClients      int
	RequestInterval time.Duration
	TestDuration    time.Duration
	Users           []string
	Entities        []string
	Viewers         []string
	Output          string
}

// Stats tracks performance metrics
type Stats struct {
	RequestsSent    int64
	RepliesReceived int64
	EventsReceived  int64
	ErrorReplies    int64
	Errors          int64
	Latencies       []time.Duration
	mu              sync.Mutex
}

func (s *Stats) addLatency(d time.Duration) {
	s.mu.Lock()
	s.Latencies = append(s.Latencies, d)
	s.mu.Unlock()
}

func main() {
	var cfg Config
	root := &cobra.Command{
		Use:   "agitator",
		Short: "Stress the display websocket with concurrent clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(cfg.Users) == 0 || len(cfg.Entities) == 0 {
				return fmt.Errorf("at least one --users and one --entities value is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.TestDuration)
			defer cancel()

			fmt.Println("=========================================")
			fmt.Println("AGITATOR - display load test")
			fmt.Println("=========================================")
			fmt.Printf("Server:   %s\n", cfg.ServerURL)
			fmt.Printf("Clients:  %d\n", cfg.NumClients)
			fmt.Printf("Interval: %v\n", cfg.RequestInterval)
			fmt.Printf("Duration: %v\n", cfg.TestDuration)

			stats := runStressTest(ctx, cfg)
			return printResults(stats, cfg)
		},
	}
	f := root.Flags()
	f.StringVar(&cfg.ServerURL, "url", "ws://localhost:8080/ws", "WebSocket server URL")
	f.IntVar(&cfg.NumClients, "clients", 50, "number of concurrent clients")
	f.DurationVar(&cfg.RequestInterval, "interval", 100*time.Millisecond, "request interval per client")
	f.DurationVar(&cfg.TestDuration, "duration", 60*time.Second, "test duration")
	f.StringSliceVar(&cfg.Users, "users", nil, "user ids to connect as, assigned round robin")
	f.StringSliceVar(&cfg.Entities, "entities", nil, "entity ids to request displays for")
	f.StringSliceVar(&cfg.Viewers, "viewers", nil, "optional viewer entity ids")
	f.StringVar(&cfg.Output, "out", "stress_test_results.json", "results file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runStressTest(ctx context.Context, cfg Config) *Stats {
	stats := &Stats{Latencies: make([]time.Duration, 0, 10000)}

	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: sent=%d replies=%d events=%d errors=%d\n",
					atomic.LoadInt64(&stats.RequestsSent),
					atomic.LoadInt64(&stats.RepliesReceived),
					atomic.LoadInt64(&stats.EventsReceived),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	var g errgroup.Group
	for i := 0; i < cfg.NumClients; i++ {
		g.Go(func() error {
			runClient(ctx, i, cfg, stats)
			return nil
		})
		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("All %d clients started\n", cfg.NumClients)
	_ = g.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, cfg Config, stats *Stats) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	q := u.Query()
	q.Set("user", cfg.Users[clientID%len(cfg.Users)])
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client %d: connection failed: %v\n", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	var pending sync.Map // request id -> send time
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg network.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			switch msg.Type {
			case network.MsgTypeEvent:
				atomic.AddInt64(&stats.EventsReceived, 1)
				continue
			case network.MsgTypeError:
				atomic.AddInt64(&stats.ErrorReplies, 1)
			}
			atomic.AddInt64(&stats.RepliesReceived, 1)
			if sent, ok := pending.LoadAndDelete(msg.ID); ok {
				stats.addLatency(time.Since(sent.(time.Time)))
			}
		}
	}()

	rng := rand.New(rand.NewPCG(uint64(clientID), uint64(time.Now().UnixNano())))
	ticker := time.NewTicker(cfg.RequestInterval)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req := network.Request{
				Type:     network.MsgTypeDisplay,
				ID:       strconv.Itoa(clientID) + "-" + strconv.Itoa(seq),
				EntityID: cfg.Entities[rng.IntN(len(cfg.Entities))],
			}
			if len(cfg.Viewers) > 0 {
				req.ViewerID = cfg.Viewers[rng.IntN(len(cfg.Viewers))]
			}
			pending.Store(req.ID, time.Now())
			if err := conn.WriteJSON(req); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			atomic.AddInt64(&stats.RequestsSent, 1)
		}
	}
}

func printResults(stats *Stats, cfg Config) error {
	sent := atomic.LoadInt64(&stats.RequestsSent)
	replies := atomic.LoadInt64(&stats.RepliesReceived)
	errs := atomic.LoadInt64(&stats.Errors) + atomic.LoadInt64(&stats.ErrorReplies)
	throughput := float64(replies) / cfg.TestDuration.Seconds()

	fmt.Println("\n=========================================")
	fmt.Println("STRESS TEST RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Requests sent:    %d\n", sent)
	fmt.Printf("Replies received: %d\n", replies)
	fmt.Printf("Change events:    %d\n", atomic.LoadInt64(&stats.EventsReceived))
	fmt.Printf("Errors:           %d\n", errs)
	fmt.Printf("Error rate:       %.2f%%\n", float64(errs)/float64(sent+1)*100)
	fmt.Printf("Throughput:       %.2f replies/sec\n", throughput)

	stats.mu.Lock()
	lat := slices.Clone(stats.Latencies)
	stats.mu.Unlock()
	slices.Sort(lat)
	results := map[string]any{
		"requests_sent":      sent,
		"replies_received":   replies,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]any{
			"clients":  cfg.NumClients,
			"interval": cfg.RequestInterval.String(),
			"duration": cfg.TestDuration.String(),
		},
	}
	if len(lat) > 0 {
		fmt.Printf("\nRound trip:\n  Min: %v\n  P50: %v\n  P99: %v\n  Max: %v\n",
			lat[0], lat[len(lat)/2], lat[len(lat)*99/100], lat[len(lat)-1])
		results["latency_p50"] = lat[len(lat)/2].String()
		results["latency_p99"] = lat[len(lat)*99/100].String()
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0 && replies > 0:
		fmt.Println("TEST PASSED: System handled the load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Println("TEST WARNING: Some errors detected")
	default:
		fmt.Println("TEST FAILED: High error rate")
	}

	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Output, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	fmt.Printf("Results saved to %s\n", cfg.Output)
	return nil
}
