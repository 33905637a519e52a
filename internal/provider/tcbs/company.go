package tcbs

import (
	"cmp"
	"context"
	"math"
	"net/url"
	"slices"

	"github.com/shopspring/decimal"

	"vnmarket/internal/htmltext"
	"vnmarket/internal/provider"
)

// outstandingShare is reported in millions of shares
var million = decimal.New(1, 6)

type shareholdersResponse struct {
	List []struct {
		Name       *string  `json:"name"`
		OwnPercent *float64 `json:"ownPercent"`
	} `json:"listShareHolder"`
}

type officersResponse struct {
	List []struct {
		Name       *string  `json:"name"`
		Position   *string  `json:"position"`
		OwnPercent *float64 `json:"ownPercent"`
	} `json:"listKeyOfficer"`
}

type priceResponse struct {
	Data []struct {
		Price any `json:"cp"`
	} `json:"data"`
}

// sections collects the outcome of independent requests that make up one
// result. Failed sections are logged; the result fails only if all did.
type sections struct {
	c        *Client
	sym      string
	ok       int
	firstErr error
}

func (s *sections) fetch(ctx context.Context, op, path string, query url.Values, out any) bool {
	if err := s.c.get(ctx, op, path, query, out); err != nil {
		s.record(op, err)
		return false
	}
	s.ok++
	return true
}

// fail marks a section fetched earlier as unusable.
func (s *sections) fail(op string, err error) {
	s.ok--
	s.record(op, err)
}

func (s *sections) record(op string, err error) {
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.c.logger.Printf("tcbs: %s: %s unavailable: %v", s.sym, op, err)
}

// CompanyInfo combines the ticker overview, company profile, shareholders,
// key officers and the current price.
func (c *Client) CompanyInfo(ctx context.Context, symbol string) (*provider.CompanyInfo, error) {
	sym, err := provider.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	secs := &sections{c: c, sym: sym}
	info := &provider.CompanyInfo{
		Symbol:       sym,
		Shareholders: []provider.Shareholder{},
		Officers:     []provider.Officer{},
	}

	var overview map[string]any
	if secs.fetch(ctx, "company overview", "/tcanalysis/v1/ticker/"+sym+"/overview", nil, &overview) && len(overview) > 0 {
		info.Overview = decodeOverview(overview)
	}
	if err := ctx.Err(); err != nil {
		return nil, provider.NewError(provider.KindOf(err), Name, "company", err)
	}

	var profile map[string]any
	if secs.fetch(ctx, "company profile", "/tcanalysis/v1/company/"+sym+"/overview", nil, &profile) {
		if text := profileText(profile); text != "" {
			if info.Overview == nil {
				info.Overview = &provider.CompanyOverview{}
			}
			info.Overview.Profile = &text
		}
	}

	var holders shareholdersResponse
	if secs.fetch(ctx, "shareholders", "/tcanalysis/v1/company/"+sym+"/large-share-holders", nil, &holders) {
		for _, h := range holders.List {
			if h.Name == nil {
				continue
			}
			sh := provider.Shareholder{Name: *h.Name}
			if h.OwnPercent != nil {
				sh.Ownership = *h.OwnPercent
			}
			info.Shareholders = append(info.Shareholders, sh)
		}
	}

	var officers officersResponse
	if secs.fetch(ctx, "officers", "/tcanalysis/v1/company/"+sym+"/key-officers", nil, &officers) {
		for _, o := range officers.List {
			if o.Name == nil {
				continue
			}
			off := provider.Officer{Name: *o.Name, Ownership: o.OwnPercent}
			if o.Position != nil {
				off.Position = *o.Position
			}
			info.Officers = append(info.Officers, off)
		}
		sortOfficers(info.Officers)
	}

	var price priceResponse
	if secs.fetch(ctx, "current price", "/stock-insight/v1/stock/second-tc-price", url.Values{"tickers": {sym}}, &price) && len(price.Data) > 0 {
		if p, ok := provider.Float(price.Data[0].Price); ok {
			info.CurrentPrice = &p
		}
	}

	if secs.ok == 0 {
		return nil, secs.firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, provider.NewError(provider.KindOf(err), Name, "company", err)
	}
	if info.Overview == nil && info.CurrentPrice == nil && len(info.Shareholders) == 0 && len(info.Officers) == 0 {
		return nil, provider.Errorf(provider.KindNotFound, Name, "company", "no company data for %s", sym)
	}

	if info.Overview != nil && info.CurrentPrice != nil {
		if shares, ok := provider.Float(overview["outstandingShare"]); ok {
			mc := decimal.NewFromFloat(shares).Mul(million).Mul(decimal.NewFromFloat(*info.CurrentPrice))
			info.MarketCap = &mc
		}
	}
	return info, nil
}

func decodeOverview(m map[string]any) *provider.CompanyOverview {
	ov := &provider.CompanyOverview{
		Exchange:    str(m, "exchange"),
		Industry:    str(m, "industry"),
		CompanyType: str(m, "companyType"),
		ShortName:   str(m, "shortName"),
		Website:     str(m, "website"),
	}
	if v, ok := provider.Float(m["establishedYear"]); ok {
		y := int(v)
		ov.EstablishedYear = &y
	}
	if v, ok := provider.Float(m["noEmployees"]); ok {
		n := int(v)
		ov.Employees = &n
	}
	if v, ok := provider.Float(m["outstandingShare"]); ok {
		n := int64(math.Round(v * 1e6))
		ov.OutstandingShares = &n
	}
	return ov
}

// profileText returns the cleaned company profile. When the profile field is
// missing the first long text field is used instead.
func profileText(m map[string]any) string {
	if s, ok := m["companyProfile"].(string); ok {
		if text := htmltext.Clean(s); text != "" {
			return text
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if s, ok := m[k].(string); ok && len(s) > 100 {
			return htmltext.Clean(s)
		}
	}
	return ""
}

// sortOfficers orders officers by ownership, largest first, unknown last.
func sortOfficers(list []provider.Officer) {
	slices.SortStableFunc(list, func(a, b provider.Officer) int {
		switch {
		case a.Ownership == nil && b.Ownership == nil:
			return 0
		case a.Ownership == nil:
			return 1
		case b.Ownership == nil:
			return -1
		}
		return cmp.Compare(*b.Ownership, *a.Ownership)
	})
}

func str(m map[string]any, key string) *string {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}
