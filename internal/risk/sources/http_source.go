// Package sources implements the concrete RiskSource adapters grounded on
// original_source/backend/src/risk_sources.py: pump.fun, Birdeye,
// TokenSniffer, RugCheck, GoPlus, and RugDoc. Each is best-effort — a
// non-2xx response or network error is treated as "no data", never as a
// risk finding in itself.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/raysnipe/sniper/internal/risk"
)

// httpSource is the shared skeleton for the JSON-over-HTTP adapters.
type httpSource struct {
	name    string
	client  *http.Client
	baseURL string
	apiKey  string
}

func newHTTPSource(name, baseURL, apiKey string) httpSource {
	return httpSource{
		name:    name,
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (h httpSource) Name() string { return h.name }

func (h httpSource) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if h.apiKey != "" {
		req.Header.Set("X-API-KEY", h.apiKey)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", h.name, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PumpFunSource checks pump.fun's own token metadata endpoint for
// completed/king-of-the-hill state, grounded on risk_sources.py's
// pumpfun_token.
type PumpFunSource struct{ httpSource }

func NewPumpFunSource(baseURL string) *PumpFunSource {
	return &PumpFunSource{newHTTPSource("pumpfun", baseURL, "")}
}

func (s *PumpFunSource) Query(ctx context.Context, mint string) (risk.View, error) {
	var resp struct {
		Complete        bool `json:"complete"`
		KingOfTheHill   bool `json:"king_of_the_hill_timestamp"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/coins/%s", s.baseURL, mint), &resp); err != nil {
		return risk.View{}, err
	}
	if !resp.Complete {
		return risk.View{Level: risk.LevelMedium, Findings: []string{"pumpfun: bonding curve not yet completed"}}, nil
	}
	return risk.View{Level: risk.LevelLow}, nil
}

// BirdeyeSource wraps Birdeye's token_security endpoint and requires an API
// key, grounded on risk_sources.py's birdeye_security.
type BirdeyeSource struct{ httpSource }

func NewBirdeyeSource(baseURL, apiKey string) *BirdeyeSource {
	return &BirdeyeSource{newHTTPSource("birdeye", baseURL, apiKey)}
}

func (s *BirdeyeSource) Query(ctx context.Context, mint string) (risk.View, error) {
	if s.apiKey == "" {
		return risk.View{}, fmt.Errorf("birdeye: no API key configured")
	}
	var resp struct {
		Data struct {
			TopHoldersPct   float64 `json:"top10HolderPercent"`
			IsMutable       bool    `json:"mutableMetadata"`
			NonTransferable bool    `json:"nonTransferable"`
		} `json:"data"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/defi/token_security?address=%s", s.baseURL, mint), &resp); err != nil {
		return risk.View{}, err
	}

	var findings []string
	level := risk.LevelLow
	if resp.Data.NonTransferable {
		level = risk.LevelCritical
		findings = append(findings, "birdeye: token is non-transferable")
	}
	if resp.Data.TopHoldersPct > 50 {
		level = risk.MaxRisk(level, risk.LevelHigh)
		findings = append(findings, "birdeye: top 10 holders control over half of supply")
	}
	return risk.View{Level: level, Findings: findings}, nil
}

// TokenSnifferSource wraps TokenSniffer's public score endpoint, grounded on
// risk_sources.py's tokensniffer_report.
type TokenSnifferSource struct{ httpSource }

func NewTokenSnifferSource(baseURL, apiKey string) *TokenSnifferSource {
	return &TokenSnifferSource{newHTTPSource("tokensniffer", baseURL, apiKey)}
}

func (s *TokenSnifferSource) Query(ctx context.Context, mint string) (risk.View, error) {
	var resp struct {
		Score  int      `json:"score"`
		Alerts []string `json:"tests_alerted"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/tokens/solana/%s", s.baseURL, mint), &resp); err != nil {
		return risk.View{}, err
	}
	switch {
	case resp.Score < 30:
		return risk.View{Level: risk.LevelCritical, Findings: resp.Alerts}, nil
	case resp.Score < 60:
		return risk.View{Level: risk.LevelHigh, Findings: resp.Alerts}, nil
	case resp.Score < 80:
		return risk.View{Level: risk.LevelMedium, Findings: resp.Alerts}, nil
	default:
		return risk.View{Level: risk.LevelLow}, nil
	}
}

// RugCheckSource wraps RugCheck's summary/report endpoint, grounded on
// risk_sources.py's rugcheck_report.
type RugCheckSource struct{ httpSource }

func NewRugCheckSource(baseURL string) *RugCheckSource {
	return &RugCheckSource{newHTTPSource("rugcheck", baseURL, "")}
}

func (s *RugCheckSource) Query(ctx context.Context, mint string) (risk.View, error) {
	var resp struct {
		Score int      `json:"score"`
		Risks []string `json:"risks"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/tokens/%s/report/summary", s.baseURL, mint), &resp); err != nil {
		return risk.View{}, err
	}
	if resp.Score > 5000 {
		return risk.View{Level: risk.LevelCritical, Findings: resp.Risks}, nil
	}
	if resp.Score > 1000 {
		return risk.View{Level: risk.LevelHigh, Findings: resp.Risks}, nil
	}
	return risk.View{Level: risk.LevelLow}, nil
}

// GoPlusSource wraps GoPlus Security's Solana token security endpoint,
// grounded on risk_sources.py's goplus_security.
type GoPlusSource struct{ httpSource }

func NewGoPlusSource(baseURL string) *GoPlusSource {
	return &GoPlusSource{newHTTPSource("goplus", baseURL, "")}
}

func (s *GoPlusSource) Query(ctx context.Context, mint string) (risk.View, error) {
	var resp struct {
		Result map[string]struct {
			MintAuthority    string `json:"mintable"`
			FreezeAuthority  string `json:"freezable"`
			TransferFeeFlag  string `json:"transfer_fee_upgradable"`
		} `json:"result"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/api/v1/solana/token_security?contract_addresses=%s", s.baseURL, mint), &resp); err != nil {
		return risk.View{}, err
	}
	info, ok := resp.Result[mint]
	if !ok {
		return risk.View{Level: risk.LevelLow}, nil
	}
	var findings []string
	level := risk.LevelLow
	if info.MintAuthority == "1" {
		level = risk.MaxRisk(level, risk.LevelHigh)
		findings = append(findings, "goplus: mint authority still active")
	}
	if info.TransferFeeFlag == "1" {
		level = risk.MaxRisk(level, risk.LevelMedium)
		findings = append(findings, "goplus: transfer fee is upgradable")
	}
	return risk.View{Level: level, Findings: findings}, nil
}

// RugDocSource wraps RugDoc's community-reported scam-token list, disabled
// by default per risk_sources.py's rugdoc_report (the original notes it as
// "disabled by default").
type RugDocSource struct {
	httpSource
	enabled bool
}

func NewRugDocSource(baseURL string, enabled bool) *RugDocSource {
	return &RugDocSource{httpSource: newHTTPSource("rugdoc", baseURL, ""), enabled: enabled}
}

func (s *RugDocSource) Query(ctx context.Context, mint string) (risk.View, error) {
	if !s.enabled {
		return risk.View{Level: risk.LevelLow}, nil
	}
	var resp struct {
		Flagged bool `json:"flagged"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/api/tokens/%s", s.baseURL, mint), &resp); err != nil {
		return risk.View{}, err
	}
	if resp.Flagged {
		return risk.View{Level: risk.LevelCritical, Findings: []string{"rugdoc: community-flagged"}}, nil
	}
	return risk.View{Level: risk.LevelLow}, nil
}
