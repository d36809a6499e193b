// Benchmark drives concurrent transfers against a running API seeded by
// cmd/seeder, and reports throughput plus conflict/abort rates.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Idempotent replays
	success201    uint64 // Created
	fail409       uint64 // Conflicts
	fail422       uint64 // Insufficient funds
	failOther     uint64
)

type session struct {
	token     string
	accountID int64
	payeeIDs  []int64
}

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	client := &http.Client{Timeout: 5 * time.Second}

	sessions := make([]*session, concurrency)
	for i := range sessions {
		// Seeded users: user001@example.com .. user050@example.com
		email := fmt.Sprintf("user%03d@example.com", i%50+1)
		s, err := login(client, email, "password123")
		if err != nil {
			log.Fatalf("Login failed for %s: %v", email, err)
		}
		sessions[i] = s
	}

	start := time.Now()
	var g errgroup.Group
	for i := 0; i < concurrency; i++ {
		sess := sessions[i]
		g.Go(func() error {
			worker(client, sess, start)
			return nil
		})
	}
	g.Wait()

	printResults(time.Since(start))
}

func worker(client *http.Client, sess *session, start time.Time) {
	for time.Since(start) < duration {
		payeeID := pickPayee(sess)
		key := uuid.NewString()

		payload := map[string]interface{}{
			"from_account_id": sess.accountID,
			"payee_id":        payeeID,
			"amount_cents":    int64(100),
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/v1/transfers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+sess.token)
		req.Header.Set("Idempotency-Key", key)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 200:
			atomic.AddUint64(&success200, 1)
		case 409:
			atomic.AddUint64(&fail409, 1)
		case 422:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickPayee(sess *session) int64 {
	if len(sess.payeeIDs) == 0 {
		return 0
	}
	if workload == "hotspot" {
		// Hotspot: 90% of traffic targets one payee, hammering one account pair.
		if rand.Float32() < 0.90 {
			return sess.payeeIDs[0]
		}
	}
	return sess.payeeIDs[rand.Intn(len(sess.payeeIDs))]
}

func login(client *http.Client, email, password string) (*session, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := client.Post(targetURL+"/api/v1/auth/login", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login status %d", resp.StatusCode)
	}

	var loginResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, err
	}

	sess := &session{token: loginResp.AccessToken}

	accounts, err := getJSON(client, sess.token, "/api/v1/accounts")
	if err != nil {
		return nil, err
	}
	var accts []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(accounts, &accts); err != nil || len(accts) == 0 {
		return nil, fmt.Errorf("no accounts for %s", email)
	}
	sess.accountID = accts[0].ID

	payees, err := getJSON(client, sess.token, "/api/v1/payees")
	if err != nil {
		return nil, err
	}
	var ps []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(payees, &ps); err != nil {
		return nil, err
	}
	for _, p := range ps {
		sess.payeeIDs = append(sess.payeeIDs, p.ID)
	}

	return sess, nil
}

func getJSON(client *http.Client, token, path string) ([]byte, error) {
	req, _ := http.NewRequest(http.MethodGet, targetURL+path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s status %d", path, resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var abortRate float64
	if total > 0 {
		abortRate = float64(f409+f422) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":           workload,
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_tps":     tps,
		"success_created":    s201,
		"success_replay":     s200,
		"aborts_conflict":    f409,
		"insufficient_funds": f422,
		"abort_rate_pct":     abortRate,
		"errors":             fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
