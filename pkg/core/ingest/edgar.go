package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"edgar_rag/pkg/models"
)

const (
	// SEC EDGAR API endpoints
	DefaultTickersURL     = "https://www.sec.gov/files/company_tickers.json"
	DefaultSubmissionsURL = "https://data.sec.gov/submissions"
	DefaultArchivesURL    = "https://www.sec.gov/Archives/edgar/data"

	// SEC fair-access policy allows 10 requests per second.
	defaultRequestInterval = 110 * time.Millisecond
)

// =============================================================================
// SEC EDGAR DATA TYPES
// =============================================================================

// SECCompanyInfo is the top-level submissions response.
type SECCompanyInfo struct {
	CIK     string     `json:"cik"`
	Name    string     `json:"name"`
	Tickers []string   `json:"tickers"`
	Filings SECFilings `json:"filings"`
}

// SECFilings contains the recent filing list.
type SECFilings struct {
	Recent SECRecentFilings `json:"recent"`
}

// SECRecentFilings holds filing attributes as parallel arrays.
type SECRecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"` // e.g., "0000950170-24-087843"
	FilingDate      []string `json:"filingDate"`      // e.g., "2024-07-30"
	ReportDate      []string `json:"reportDate"`      // fiscal period end
	Form            []string `json:"form"`            // "10-K", "10-Q", "8-K"
	PrimaryDocument []string `json:"primaryDocument"` // filename
}

// =============================================================================
// SEC EDGAR CLIENT
// =============================================================================

// EDGARConfig configures the client. Empty URLs use the public SEC endpoints.
type EDGARConfig struct {
	UserAgent       string // SEC requires "Name email"
	TickersURL      string
	SubmissionsURL  string
	ArchivesURL     string
	RequestInterval time.Duration
	HTTPClient      *http.Client
}

// EDGARClient handles SEC EDGAR API requests.
type EDGARClient struct {
	cfg        EDGARConfig
	httpClient *http.Client

	mu      sync.Mutex
	last    time.Time
	cikByTk map[string]string
}

// NewEDGARClient creates a client. A User-Agent is mandatory.
func NewEDGARClient(cfg EDGARConfig) (*EDGARClient, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, fmt.Errorf("SEC EDGAR requires a User-Agent identity (\"Name email\")")
	}
	if cfg.TickersURL == "" {
		cfg.TickersURL = DefaultTickersURL
	}
	if cfg.SubmissionsURL == "" {
		cfg.SubmissionsURL = DefaultSubmissionsURL
	}
	if cfg.ArchivesURL == "" {
		cfg.ArchivesURL = DefaultArchivesURL
	}
	if cfg.RequestInterval == 0 {
		cfg.RequestInterval = defaultRequestInterval
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &EDGARClient{cfg: cfg, httpClient: httpClient}, nil
}

// get performs a throttled GET with the configured User-Agent.
func (c *EDGARClient) get(ctx context.Context, url, accept string) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SEC request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SEC returned status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func (c *EDGARClient) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.cfg.RequestInterval - time.Since(c.last)
	if wait < 0 {
		wait = 0
	}
	c.last = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LookupCIK finds the zero-padded CIK for a ticker. The mapping is fetched once per client.
func (c *EDGARClient) LookupCIK(ctx context.Context, ticker string) (string, error) {
	c.mu.Lock()
	cached := c.cikByTk
	c.mu.Unlock()

	if cached == nil {
		body, err := c.get(ctx, c.cfg.TickersURL, "application/json")
		if err != nil {
			return "", fmt.Errorf("failed to fetch ticker mapping: %w", err)
		}

		// { "0": {"cik_str": 789019, "ticker": "MSFT", "title": "..."}, ... }
		var mapping map[string]struct {
			CIK    int    `json:"cik_str"`
			Ticker string `json:"ticker"`
			Title  string `json:"title"`
		}
		if err := json.Unmarshal(body, &mapping); err != nil {
			return "", fmt.Errorf("failed to parse ticker mapping: %w", err)
		}

		cached = make(map[string]string, len(mapping))
		for _, entry := range mapping {
			cached[strings.ToUpper(entry.Ticker)] = fmt.Sprintf("%010d", entry.CIK)
		}
		c.mu.Lock()
		c.cikByTk = cached
		c.mu.Unlock()
	}

	cik, ok := cached[strings.ToUpper(ticker)]
	if !ok {
		return "", fmt.Errorf("ticker %s not found in SEC database", ticker)
	}
	return cik, nil
}

// FetchCompanyInfo retrieves submission data; the CIK is zero-padded to 10 digits.
func (c *EDGARClient) FetchCompanyInfo(ctx context.Context, cik string) (*SECCompanyInfo, error) {
	padded := padCIK(cik)
	url := fmt.Sprintf("%s/CIK%s.json", c.cfg.SubmissionsURL, padded)

	body, err := c.get(ctx, url, "application/json")
	if err != nil {
		return nil, err
	}

	var info SECCompanyInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse SEC response: %w", err)
	}
	if info.CIK == "" {
		info.CIK = padded
	}
	return &info, nil
}

// Filings denormalizes the parallel arrays into refs, keeping the requested
// forms filed within [start, end]. Zero bounds are open.
func (c *EDGARClient) Filings(info *SECCompanyInfo, ticker string, forms []models.FormType, start, end time.Time) []Ref {
	recent := info.Filings.Recent
	wanted := make(map[models.FormType]bool, len(forms))
	for _, f := range forms {
		wanted[f] = true
	}

	archiveCIK := strings.TrimLeft(info.CIK, "0")
	refs := make([]Ref, 0)
	for i := range recent.AccessionNumber {
		if i >= len(recent.Form) || i >= len(recent.FilingDate) || i >= len(recent.PrimaryDocument) {
			break
		}
		// amendments ("10-K/A") are not filings of the base form
		form := models.ParseFormType(recent.Form[i])
		if recent.Form[i] != string(form) || (len(wanted) > 0 && !wanted[form]) {
			continue
		}

		filingDate, err := time.Parse(models.DateLayout, recent.FilingDate[i])
		if err != nil {
			continue
		}
		if !start.IsZero() && filingDate.Before(start) {
			continue
		}
		if !end.IsZero() && filingDate.After(end) {
			continue
		}

		ref := Ref{
			Ticker:     strings.ToUpper(ticker),
			FormType:   form,
			FilingDate: filingDate,
			Accession:  recent.AccessionNumber[i],
			URL: fmt.Sprintf("%s/%s/%s/%s", c.cfg.ArchivesURL, archiveCIK,
				strings.ReplaceAll(recent.AccessionNumber[i], "-", ""), recent.PrimaryDocument[i]),
		}
		if i < len(recent.ReportDate) {
			if d, err := time.Parse(models.DateLayout, recent.ReportDate[i]); err == nil {
				ref.PeriodEnd = &d
			}
		}
		refs = append(refs, ref)
	}
	return refs
}

func padCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "0")
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// =============================================================================
// SOURCE
// =============================================================================

// EDGARSource lists filings per ticker from the submissions API and converts
// each primary document to markdown.
type EDGARSource struct {
	Client    *EDGARClient
	Tickers   []string
	FormTypes []models.FormType
	Start     time.Time
	End       time.Time
}

var _ Source = (*EDGARSource)(nil)

// List returns the filings of every ticker, oldest first per ticker. A
// ticker that cannot be resolved fails the listing.
func (s *EDGARSource) List(ctx context.Context) ([]Ref, error) {
	refs := make([]Ref, 0)
	for _, ticker := range s.Tickers {
		cik, err := s.Client.LookupCIK(ctx, ticker)
		if err != nil {
			return nil, err
		}
		info, err := s.Client.FetchCompanyInfo(ctx, cik)
		if err != nil {
			return nil, fmt.Errorf("submissions for %s: %w", ticker, err)
		}
		filings := s.Client.Filings(info, ticker, s.FormTypes, s.Start, s.End)
		for i := len(filings) - 1; i >= 0; i-- {
			refs = append(refs, filings[i])
		}
	}
	return refs, nil
}

// Fetch downloads the primary document and converts it to markdown.
func (s *EDGARSource) Fetch(ctx context.Context, ref Ref) (*Document, error) {
	if ref.URL == "" {
		return nil, fmt.Errorf("filing %s has no document URL", ref.Name())
	}
	body, err := s.Client.get(ctx, ref.URL, "text/html")
	if err != nil {
		return nil, err
	}
	markdown, err := HTMLToMarkdown(string(body))
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", ref.URL, err)
	}
	return &Document{Ref: ref, Markdown: markdown}, nil
}

// Save writes a fetched document under dir using the local filename layout,
// so a LocalSource over dir lists it again.
func Save(dir string, doc *Document) (string, error) {
	path := filepath.Join(dir, Filename(doc.Ref.Ticker, doc.Ref.FormType, doc.Ref.FilingDate))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(doc.Markdown), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
