// Command client drives the gateway HTTP API with generated library events.
// Updates draw their ids from a small key space, so keyed ordering can be checked with the tail tool.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/types"
)

var (
	baseURL     string
	batchSize   int
	rate        int
	duration    time.Duration
	updateRatio float64
	keySpace    int
	inFlight    int
)

func init() {
	// Try to load .env file (optional)
	godotenv.Load()

	flag.StringVar(&baseURL, "url", getEnv("GATEWAY_URL", "http://localhost:8080"), "Gateway base URL")
	flag.IntVar(&batchSize, "batch", 0, "Number of requests to send (0 = infinite)")
	flag.IntVar(&rate, "rate", 0, "Requests per second (0 = as fast as possible)")
	flag.DurationVar(&duration, "duration", 0, "Duration to run (e.g., 30s, 5m). 0 = until the batch is sent")
	flag.Float64Var(&updateRatio, "updates", 0.5, "Share of requests sent as updates (0..1)")
	flag.IntVar(&keySpace, "keys", 100, "Number of distinct event ids used by updates")
	flag.IntVar(&inFlight, "concurrency", 64, "Maximum number of requests in flight")
	flag.Parse()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

type stats struct {
	sent     atomic.Int64
	accepted atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if keySpace <= 0 || inFlight <= 0 {
		logger.Fatal("keys and concurrency must be greater than 0",
			zap.Int("keys", keySpace),
			zap.Int("concurrency", inFlight),
		)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	client := &http.Client{Timeout: 10 * time.Second}
	endpoint := baseURL + "/v1/libraryevent"

	logger.Info("Starting load client",
		zap.String("endpoint", endpoint),
		zap.Int("batch_size", batchSize),
		zap.Int("rate", rate),
		zap.Duration("duration", duration),
		zap.Float64("update_ratio", updateRatio),
	)

	// Rate limiter
	var ticker *time.Ticker
	if rate > 0 {
		ticker = time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
	}

	var (
		st stats
		wg sync.WaitGroup
	)
	slots := make(chan struct{}, inFlight)

	for i := 0; batchSize == 0 || i < batchSize; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
		select {
		case <-ctx.Done():
		case slots <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		method, event := nextRequest(i)
		wg.Add(1)
		go func() {
			defer func() {
				<-slots
				wg.Done()
			}()
			send(ctx, client, endpoint, method, event, &st, logger)
		}()
	}

	wg.Wait()
	logger.Info("Load client stopped",
		zap.Int64("sent", st.sent.Load()),
		zap.Int64("accepted", st.accepted.Load()),
		zap.Int64("rejected", st.rejected.Load()),
		zap.Int64("failed", st.failed.Load()),
	)
}

func nextRequest(i int) (string, types.LibraryEvent) {
	book := types.Book{
		BookID:     types.IntOf(int32(rand.IntN(1_000_000))),
		BookName:   fmt.Sprintf("Load Test Volume %d", i),
		BookAuthor: "Load Client",
	}
	if rand.Float64() < updateRatio {
		return http.MethodPut, types.LibraryEvent{
			LibraryEventID:   types.IntOf(int32(rand.IntN(keySpace))),
			LibraryEventType: types.EventTypeUpdate,
			Book:             book,
		}
	}
	return http.MethodPost, types.LibraryEvent{
		LibraryEventType: types.EventTypeNew,
		Book:             book,
	}
}

func send(ctx context.Context, client *http.Client, endpoint, method string, event types.LibraryEvent, st *stats, logger *zap.Logger) {
	body, err := pipeline.Encode(event)
	if err != nil {
		logger.Error("Failed to encode event", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		logger.Error("Failed to build request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	st.sent.Add(1)
	if err != nil {
		st.failed.Add(1)
		if ctx.Err() == nil {
			logger.Error("Request failed", zap.Error(err))
		}
		return
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))

	switch {
	case resp.StatusCode == http.StatusCreated:
		if n := st.accepted.Add(1); n%100 == 0 {
			logger.Info("Accepted events", zap.Int64("count", n))
		}
	case resp.StatusCode < 500:
		st.rejected.Add(1)
		logger.Warn("Event rejected",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", msg),
		)
	default:
		st.failed.Add(1)
		logger.Error("Gateway error",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", msg),
		)
	}
}
