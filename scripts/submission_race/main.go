package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type envelope struct {
	Data struct {
		Admitted bool   `json:"admitted"`
		Code     string `json:"code"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type result struct {
	Status   int
	Code     string
	Duration time.Duration
	Err      error
}

func main() {
	var (
		base        string
		payloadPath string
		callers     int
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&payloadPath, "payload", filepath.Join("scripts", "submission_race", "payload.json"), "Path to a submission payload")
	flag.IntVar(&callers, "callers", 10, "Concurrent identical submissions")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		log.Fatalf("failed to load payload: %v", err)
	}
	if !json.Valid(payload) {
		log.Fatalf("payload %s is not valid JSON", payloadPath)
	}

	client := &http.Client{Timeout: timeout}
	url := strings.TrimRight(base, "/") + "/enrollment/submissions"

	results := make([]result, callers)
	start := make(chan struct{})
	var ready sync.WaitGroup
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		i := i
		ready.Add(1)
		g.Go(func() error {
			ready.Done()
			<-start
			results[i] = submit(ctx, client, url, payload)
			return nil
		})
	}
	ready.Wait()
	close(start)
	_ = g.Wait()

	admitted := printReport(results)
	if admitted > 1 {
		fmt.Printf("FAIL: %d submissions admitted, expected at most 1\n", admitted)
		os.Exit(1)
	}
}

func submit(ctx context.Context, client *http.Client, url string, payload []byte) result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return result{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	begin := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return result{Err: err}
	}
	defer resp.Body.Close()

	res := result{Status: resp.StatusCode, Duration: time.Since(begin)}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Err = fmt.Errorf("read body: %w", err)
		return res
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		res.Err = fmt.Errorf("decode body: %w", err)
		return res
	}
	switch {
	case env.Error != nil:
		res.Code = env.Error.Code
	case env.Data.Admitted:
		res.Code = "ADMITTED"
	default:
		res.Code = env.Data.Code
	}
	return res
}

func printReport(results []result) int {
	fmt.Println("Submission Race Report")
	fmt.Println("======================")
	tally := map[string]int{}
	admitted := 0
	for i, res := range results {
		if res.Err != nil {
			fmt.Printf("[%02d] ERROR %v\n", i, res.Err)
			tally["ERROR"]++
			continue
		}
		fmt.Printf("[%02d] %d %s (%s)\n", i, res.Status, res.Code, res.Duration)
		tally[res.Code]++
		if res.Status == http.StatusCreated {
			admitted++
		}
	}

	codes := make([]string, 0, len(tally))
	for code := range tally {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Printf("%s: %d\n", code, tally[code])
	}
	return admitted
}
