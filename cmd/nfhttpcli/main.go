// Command nfhttpcli fetches a batch of URLs described by a JSON input file
// and writes each response body to its own file under an output directory,
// alongside a manifest mapping request IDs to the payload file names.
package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sandrolain/nfhttp"
	"github.com/sandrolain/nfhttp/client"
)

type requestSpec struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type batchInput struct {
	Requests []requestSpec `json:"requests"`
}

type payloadEntry struct {
	Payload string `json:"payload"`
}

type batchOutput struct {
	Responses map[string]payloadEntry `json:"responses"`
}

const payloadNameLength = 20
const payloadNameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func main() {
	if err := run(); err != nil {
		slog.Error("nfhttpcli failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	inputPath := flag.String("i", "", "path to the input JSON file (required)")
	outputDir := flag.String("o", "", "output directory for payloads and responses.json (required)")
	flag.Parse()

	if *inputPath == "" || *outputDir == "" {
		flag.Usage()
		return fmt.Errorf("both -i and -o are required")
	}

	input, err := readInput(*inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	cacheDir, err := client.StandardCacheLocation()
	if err != nil {
		return fmt.Errorf("resolving cache location: %w", err)
	}

	cl, err := client.CreateClient(cacheDir, "nfhttpcli/1.0")
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	output := batchOutput{Responses: make(map[string]payloadEntry, len(input.Requests))}
	ctx := context.Background()

	for _, spec := range input.Requests {
		payload, err := fetchOne(ctx, cl, spec)
		if err != nil {
			return fmt.Errorf("request %q: %w", spec.ID, err)
		}

		filename, err := randomFilename()
		if err != nil {
			return fmt.Errorf("generating payload file name: %w", err)
		}
		if err := os.WriteFile(filepath.Join(*outputDir, filename), payload, 0o644); err != nil {
			return fmt.Errorf("writing payload for %q: %w", spec.ID, err)
		}

		output.Responses[spec.ID] = payloadEntry{Payload: filename}
		slog.Info("fetched", "id", spec.ID, "url", spec.URL, "bytes", len(payload))
	}

	return writeManifest(*outputDir, output)
}

func readInput(path string) (batchInput, error) {
	var input batchInput
	data, err := os.ReadFile(path)
	if err != nil {
		return input, err
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return input, fmt.Errorf("parsing %s: %w", path, err)
	}
	return input, nil
}

func fetchOne(ctx context.Context, cl nfhttp.Capability, spec requestSpec) ([]byte, error) {
	req, err := nfhttp.NewRequest(nfhttp.MethodGet, spec.URL, make(http.Header), nil)
	if err != nil {
		return nil, err
	}
	resp, err := cl.PerformSync(ctx, req)
	if err != nil {
		return nil, err
	}
	if errMsg, ok := resp.Metadata("error"); ok {
		return nil, fmt.Errorf("%s", errMsg)
	}
	return resp.Body(), nil
}

func writeManifest(outputDir string, output batchOutput) error {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "responses.json"), data, 0o644)
}

func randomFilename() (string, error) {
	raw := make([]byte, payloadNameLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	name := make([]byte, payloadNameLength)
	for i, b := range raw {
		name[i] = payloadNameAlphabet[int(b)%len(payloadNameAlphabet)]
	}
	return string(name), nil
}
