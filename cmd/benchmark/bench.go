// Benchmark drives the gateway with vegeta against a mock Bedrock-style
// upstream so latency numbers isolate the gateway itself from any real
// provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	mockPort = 9091
	appPort  = 8081

	benchModel = "anthropic.claude-3-haiku-20240307-v1:0"
)

var (
	streamEvents = []string{
		`data: {"type":"message_start","message":{"usage":{"input_tokens":12}}}`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Bench"}}`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"mark"}}`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":" response"}}`,
		`data: {"type":"message_delta","usage":{"output_tokens":3}}`,
		`data: {"type":"message_stop"}`,
	}
	unaryResp = []byte(`{"content":[{"type":"text","text":"Benchmark response"}],"usage":{"input_tokens":12,"output_tokens":3},"stop_reason":"end_turn"}`)
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	stream := flag.Bool("stream", false, "Use streaming requests")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	flag.Parse()

	go startMockUpstream()

	fmt.Println("Building application...")
	buildCmd := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	workDir, err := writeBenchWorkspace()
	if err != nil {
		log.Fatalf("Failed to prepare bench workspace: %v", err)
	}
	defer os.RemoveAll(workDir)

	fmt.Println("Starting application...")
	cmd := exec.Command("./bin/server")
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "LOG_LEVEL=error")

	logFile, _ := os.Create("bench_server.log")
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}()

	waitForApp(fmt.Sprintf("http://localhost:%d/health", appPort))

	done := make(chan struct{})

	go monitorResources(cmd.Process.Pid, done)

	mode := "Unary"
	if *stream {
		mode = "Streaming"
	}
	fmt.Printf("Running %s benchmark: %s duration, %d req/s\n", mode, *duration, *rate)

	body := fmt.Sprintf(`{"modelId": %q, "provider": "bedrock", "stream": %t, "messages": [{"role": "user", "content": "Hello"}]}`, benchModel, *stream)

	targeter := func(t *vegeta.Target) error {
		t.Method = "POST"
		t.URL = fmt.Sprintf("http://localhost:%d/api/v1/chat", appPort)
		t.Body = []byte(body)
		t.Header = http.Header{
			"Content-Type":      []string{"application/json"},
			"X-Benchmark-Start": []string{strconv.FormatInt(time.Now().UnixNano(), 10)},
		}
		return nil
	}

	if *chaos {
		fmt.Println("CHAOS MODE ENABLED: Starting Chaos Monkey sidecar...")
		chaosConcurrency := *rate / 10
		if chaosConcurrency < 5 {
			chaosConcurrency = 5
		}
		if chaosConcurrency > 50 {
			chaosConcurrency = 50
		}
		go startChaosMonkey(fmt.Sprintf("http://localhost:%d/api/v1/chat", appPort), chaosConcurrency, done)
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics

	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()

	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")

		uniqueErrors := make(map[string]bool)
		count := 0
		for _, msg := range metrics.Errors {
			if !uniqueErrors[msg] && count < 5 {
				fmt.Println(msg)

				uniqueErrors[msg] = true
				count++
			}
		}
	}
}

// writeBenchWorkspace lays out a temp directory with the yaml config and a
// bedrock descriptor set pointing at the mock upstream.
func writeBenchWorkspace() (string, error) {
	dir, err := os.MkdirTemp("", "gateway-bench-*")
	if err != nil {
		return "", err
	}

	cfg := fmt.Sprintf(`
server:
  port: "%d"
  env: development
registry:
  config_dir: ./config/providers
database:
  dsn: ":memory:"
bedrock:
  base_url: "http://localhost:%d"
metrics:
  store_enabled: false
rate_limit:
  requests_per_second: 100000
  burst: 100000
`, appPort, mockPort)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644); err != nil {
		return "", err
	}

	providerDir := filepath.Join(dir, "config", "providers", "bedrock")
	if err := os.MkdirAll(providerDir, 0o755); err != nil {
		return "", err
	}

	files := map[string]string{
		"models.json": fmt.Sprintf(`{
  "schemaVersion": "1.1.0",
  "models": [
    {
      "modelId": %q,
      "provider": "bedrock",
      "vendor": "anthropic",
      "capabilities": {
        "streaming": true,
        "modalities": {"input": ["text"], "output": ["text"]},
        "inferenceTypes": {"onDemand": true, "streaming": true}
      },
      "defaults": {"maxTokens": 1024, "temperature": 0.7}
    }
  ]
}`, benchModel),
		"status.json": fmt.Sprintf(`{
  "schemaVersion": "1.1.0",
  "statuses": [
    {
      "status": "READY",
      "connections": [
        {"type": "ONDEMAND", "vendors": [{"name": "anthropic", "models": [%q]}]}
      ]
    },
    {"status": "NOT_READY", "connections": []}
  ]
}`, benchModel),
		"aliases.json":    `{"schemaVersion": "1.1.0", "aliases": {}}`,
		"vendors.json":    `{"schemaVersion": "1.1.0", "vendors": [{"name": "anthropic"}]}`,
		"modalities.json": `{"schemaVersion": "1.1.0", "modalities": [{"name": "text-to-text", "aliases": ["text"], "allowedRoles": ["system", "user", "assistant"]}]}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(providerDir, name), []byte(content), 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func startChaosMonkey(url string, concurrency int, done chan struct{}) {
	fmt.Printf("Starting Chaos Monkey with %d concurrent disrupters (random disconnects 1-200ms)\n", concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			client := &http.Client{
				Transport: &http.Transport{
					MaxIdleConns:        100,
					MaxIdleConnsPerHost: 100,
					DisableKeepAlives:   false,
				},
			}

			payload := fmt.Sprintf(`{"modelId": %q, "provider": "bedrock", "stream": true, "messages": [{"role": "user", "content": "Chaos Request"}]}`, benchModel)

			for {
				select {
				case <-done:
					return
				default:
					// Randomly disconnect between 1ms and 200ms
					timeout := time.Duration(rand.Intn(200)+1) * time.Millisecond

					ctx, cancel := context.WithTimeout(context.Background(), timeout)
					req, _ := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(payload))
					req.Header.Set("Content-Type", "application/json")

					resp, err := client.Do(req)
					if err == nil {
						resp.Body.Close()
					}
					cancel()

					time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
				}
			}
		}()
	}
}

func startMockUpstream() {
	mux := http.NewServeMux()

	mux.HandleFunc("/model/", func(w http.ResponseWriter, r *http.Request) {
		startStr := r.Header.Get("X-Benchmark-Start")
		if startStr != "" {
			start, _ := strconv.ParseInt(startStr, 10, 64)
			latency := time.Now().UnixNano() - start
			// Sample 1% of requests to avoid console spam
			if rand.Intn(100) == 0 {
				fmt.Printf("DEBUG: Proxy Overhead: %v\n", time.Duration(latency))
			}
		}

		if strings.HasSuffix(r.URL.Path, "/invoke-with-response-stream") {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher, _ := w.(http.Flusher)

			for _, event := range streamEvents {
				time.Sleep(20 * time.Millisecond)
				fmt.Fprintf(w, "%s\n\n", event)
				flusher.Flush()
			}
			return
		}

		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write(unaryResp)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	_ = http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux)
}

func monitorResources(pid int, done chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	fmt.Println("\n--- Resource Usage (ps) ---")
	fmt.Printf("% -10s % -10s % -10s\n", "Time", "RSS(MB)", "CPU(%)")

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			cpu, rss := 0.0, 0.0
			out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "%cpu,rss").Output()
			if err == nil {
				lines := strings.Split(strings.TrimSpace(string(out)), "\n")
				if len(lines) >= 2 {
					fields := strings.Fields(lines[1])
					if len(fields) == 2 {
						cpu, _ = strconv.ParseFloat(fields[0], 64)
						kb, _ := strconv.ParseFloat(fields[1], 64)
						rss = kb / 1024
					}
				}
			}

			fmt.Printf("% -10s % -10.2f % -10.2f\n", time.Now().Format("15:04:05"), rss, cpu)
		}
	}
}

func waitForApp(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil && resp.StatusCode == 200 {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Fatal("App timed out")
}

