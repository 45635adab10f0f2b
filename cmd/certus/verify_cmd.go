package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"certus/internal/domain"
	"certus/pkg/digest"
)

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	server := fs.String("server", "http://localhost:8080", "certusd base url")
	hash := fs.String("hash", "", "sha256 digest to verify")
	file := fs.String("file", "", "file to hash and verify")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if (*hash == "") == (*file == "") {
		fmt.Fprintln(os.Stderr, "verify requires exactly one of --hash or --file")
		return 1
	}

	target := *hash
	if *file != "" {
		sum, err := digest.SHA256File(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash %s: %v\n", *file, err)
			return 1
		}
		target = sum
	}

	endpoint := strings.TrimRight(*server, "/") + "/v1/verify/" + url.PathEscape(target)
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(endpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	var result domain.VerificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "decode response: %v\n", err)
		return 1
	}

	status := "invalid"
	if result.Valid {
		status = "valid"
	}
	fmt.Printf("status=%s hash=%s\n", status, target)
	if result.Valid {
		fmt.Printf("signer=%s issued_at=%s source=%s latency_ms=%d\n",
			result.Signer, result.IssuedAt.Format(time.RFC3339), result.Source, result.LatencyMS)
	}
	for _, e := range result.Errors {
		fmt.Printf("error=%s\n", e)
	}
	if result.Valid {
		return 0
	}
	return 1
}
