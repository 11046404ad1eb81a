// Mock fraud-platform services for exercising the harness without a real
// deployment. Answers health checks and the evaluate/ingest/query endpoints
// with canned responses.
//
//	go run ./scripts/mockservices -port 8081
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

func main() {
	port := flag.Int("port", 8081, "listen port")
	latency := flag.Duration("latency", 2*time.Millisecond, "simulated service latency")
	flag.Parse()

	mux := http.NewServeMux()

	ok := func(w http.ResponseWriter, body interface{}) {
		time.Sleep(*latency)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}

	mux.HandleFunc("/v1/evaluate/health", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"status": "healthy"})
	})

	mux.HandleFunc("/v1/evaluate/auth", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		ok(w, map[string]interface{}{
			"transaction_id": req["transaction_id"],
			"decision":       "APPROVE",
			"matched_rules":  []string{},
		})
	})
	mux.HandleFunc("/v1/evaluate/monitoring", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		ok(w, map[string]interface{}{
			"transaction_id": req["transaction_id"],
			"decision":       "NO_ACTION",
			"matched_rules":  []string{},
		})
	})

	mux.HandleFunc("/api/v1/decision-events", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/api/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"transactions": []interface{}{}, "next_cursor": nil})
	})
	mux.HandleFunc("/api/v1/transactions/", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"transaction_id": r.URL.Path, "decision": "APPROVE"})
	})

	mux.HandleFunc("/api/v1/rules", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		ok(w, map[string]interface{}{"rules": []interface{}{}})
	})
	mux.HandleFunc("/api/v1/rules/", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"rule_id": r.URL.Path, "enabled": true})
	})

	mux.HandleFunc("/api/v1/ops-agent/worklist/recommendations", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"recommendations": []interface{}{}, "next_cursor": nil})
	})
	mux.HandleFunc("/api/v1/ops-agent/investigations/run", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"run_id": "mock-run", "status": "COMPLETE"})
	})
	mux.HandleFunc("/api/v1/ops-agent/transactions/", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"insights": []interface{}{}})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock services listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
