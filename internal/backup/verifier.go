package backup

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/crypto/blake2b"
)

const (
	DefaultVerifyTimeout = 30 * time.Second

	breakerName         = "artifact-fetch"
	breakerMaxFailures  = 3
	breakerOpenDuration = time.Minute
)

// Verifier re-reads an uploaded artifact through its public URL and checks
// it against what was exported.
type Verifier struct {
	client *http.Client
	cb     *gobreaker.CircuitBreaker[*fetched]
	logger *slog.Logger
}

type fetched struct {
	status int
	body   []byte
}

// errServer marks a 5xx response so the breaker counts it as a failure.
var errServer = errors.New("server error")

func NewVerifier(client *http.Client, logger *slog.Logger) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultVerifyTimeout}
	}
	logger = logger.With("component", "verifier")

	breakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[*fetched](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     breakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			breakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Verifier{client: client, cb: cb, logger: logger}
}

type artifactHeader struct {
	Version        *string                    `json:"version"`
	Tables         map[string]json.RawMessage `json:"tables"`
	TableRowCounts map[string]int             `json:"table_row_counts"`
	TotalRows      int                        `json:"total_rows"`
}

// Verify fetches url and runs the checks in order. Access, parse and
// structure failures stop verification early; the table and count checks
// all run and collect every mismatch.
func (v *Verifier) Verify(ctx context.Context, url string, expectedTables []string, expectedCounts map[string]int) (report model.VerificationReport) {
	report.Errors = []string{}
	defer func() {
		report.VerifiedAt = time.Now().UTC()
		report.Verified = report.Details.Passed() && len(report.Errors) == 0
		result := "unverified"
		if report.Verified {
			result = "verified"
		}
		verifications.WithLabelValues(result).Inc()
	}()

	res, err := v.cb.Execute(func() (*fetched, error) {
		return v.fetch(ctx, url)
	})
	if err != nil && res == nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Backup file not accessible: %v", err))
		return report
	}
	if res.status < 200 || res.status > 299 {
		report.Errors = append(report.Errors, fmt.Sprintf("Backup file not accessible: HTTP %d", res.status))
		return report
	}
	report.Details.FileAccessible = true

	sum := blake2b.Sum256(res.body)
	report.ContentDigest = hex.EncodeToString(sum[:])
	report.SizeBytes = int64(len(res.body))

	if !json.Valid(res.body) {
		report.Errors = append(report.Errors, "Backup file is not valid JSON")
		return report
	}
	report.Details.ValidJSON = true

	var hdr artifactHeader
	if err := json.Unmarshal(res.body, &hdr); err != nil ||
		hdr.Version == nil || *hdr.Version == "" || hdr.Tables == nil || hdr.TableRowCounts == nil {
		report.Errors = append(report.Errors, "Backup file has invalid structure (missing version, tables, or table_row_counts)")
		return report
	}
	report.Details.StructureValid = true

	var missing []string
	for _, t := range expectedTables {
		if _, ok := hdr.Tables[t]; !ok && expectedCounts[t] > 0 {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		report.Errors = append(report.Errors, "Missing tables in backup: "+strings.Join(missing, ", "))
	} else {
		report.Details.TablesMatch = true
	}

	report.Details.RowCountsMatch = true
	for _, t := range expectedTables {
		want, got := expectedCounts[t], hdr.TableRowCounts[t]
		if want != got {
			report.Errors = append(report.Errors, fmt.Sprintf("Row count mismatch for %s: expected %d, got %d", t, want, got))
			report.Details.RowCountsMatch = false
		}
	}

	total := 0
	for _, n := range expectedCounts {
		total += n
	}
	if total == hdr.TotalRows {
		report.Details.ChecksumValid = true
	} else {
		report.Errors = append(report.Errors, fmt.Sprintf("Total row count mismatch: expected %d, got %d", total, hdr.TotalRows))
	}

	return report
}

func (v *Verifier) fetch(ctx context.Context, url string) (*fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	f := &fetched{status: resp.StatusCode, body: body}
	if resp.StatusCode >= 500 {
		return f, fmt.Errorf("%w: HTTP %d", errServer, resp.StatusCode)
	}
	return f, nil
}
