package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type probe struct {
	Target     target
	Status     int
	StatusOK   bool
	EnvelopeOK bool
	Error      error
	Duration   time.Duration
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke_probe", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		probes   []probe
		breaking int
		warnings int
	)

	for _, t := range targets {
		p := probeTarget(client, base, t)
		if p.Error != nil || !p.StatusOK || !p.EnvelopeOK {
			if t.Critical {
				breaking++
			} else {
				warnings++
			}
		}
		probes = append(probes, p)
	}

	printReport(probes)

	fmt.Printf("Breaking failures: %d, Warnings: %d\n", breaking, warnings)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func probeTarget(client *http.Client, base string, tgt target) probe {
	p := probe{Target: tgt}

	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		p.Error = err
		return p
	}
	start := time.Now()
	resp, err := client.Do(req)
	p.Duration = time.Since(start)
	if err != nil {
		p.Error = err
		return p
	}
	defer resp.Body.Close()

	expect := tgt.Expect
	if expect == 0 {
		expect = http.StatusOK
	}
	p.Status = resp.StatusCode
	p.StatusOK = p.Status == expect
	p.EnvelopeOK = envelopeOK(resp)
	return p
}

// envelopeOK accepts non-JSON payloads untouched; JSON bodies must carry
// either a data or an error member, matching the response envelope.
func envelopeOK(resp *http.Response) bool {
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return true
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	_, hasData := envelope["data"]
	_, hasError := envelope["error"]
	_, hasStatus := envelope["status"]
	return hasData || hasError || hasStatus
}

func printReport(results []probe) {
	fmt.Println("Smoke Probe Report")
	fmt.Println("==================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusOK || !res.EnvelopeOK {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		fmt.Printf("  Status: %d (%s)\n", res.Status, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status match: %t | Envelope: %t | Critical: %t\n", res.StatusOK, res.EnvelopeOK, res.Target.Critical)
		}
	}
}
