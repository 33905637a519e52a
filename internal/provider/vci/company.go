package vci

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"vnmarket/internal/htmltext"
	"vnmarket/internal/provider"
)

// CompanyInfo returns the company snapshot from the GraphQL company query.
func (c *Client) CompanyInfo(ctx context.Context, symbol string) (*provider.CompanyInfo, error) {
	sym, err := provider.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	doc, err := c.graphql(ctx, "company", companyQuery, map[string]string{"ticker": sym, "lang": "vi"})
	if err != nil {
		return nil, err
	}

	priceInfo := object(doc, "$.data.TickerPriceInfo")
	listing := object(doc, "$.data.CompanyListingInfo")
	if priceInfo == nil && listing == nil {
		return nil, provider.Errorf(provider.KindNotFound, Name, "company", "no listing for %s", sym)
	}

	info, err := decodeCompany(sym, priceInfo, listing,
		objects(doc, "$.data.OrganizationShareHolders"),
		objects(doc, "$.data.OrganizationManagers"))
	if err != nil {
		return nil, provider.NewError(provider.KindDecode, Name, "company", fmt.Errorf("%s: %w", sym, err))
	}
	return info, nil
}

func decodeCompany(sym string, priceInfo, listing map[string]any, holders, managers []map[string]any) (*provider.CompanyInfo, error) {
	info := &provider.CompanyInfo{
		Symbol:       sym,
		Overview:     &provider.CompanyOverview{},
		Shareholders: []provider.Shareholder{},
		Officers:     []provider.Officer{},
	}

	exchange, err := parseNullableValue[string](priceInfo, "exchange")
	if err != nil {
		return nil, err
	}
	matchPrice, err := parseNullableValue[float64](priceInfo, "matchPrice")
	if err != nil {
		return nil, err
	}
	high, err := parseNullableValue[float64](priceInfo, "highestPrice1Year")
	if err != nil {
		return nil, err
	}
	low, err := parseNullableValue[float64](priceInfo, "lowestPrice1Year")
	if err != nil {
		return nil, err
	}
	ratio, _ := priceInfo["financialRatio"].(map[string]any)
	pe, err := parseNullableValue[float64](ratio, "pe")
	if err != nil {
		return nil, err
	}
	pb, err := parseNullableValue[float64](ratio, "pb")
	if err != nil {
		return nil, err
	}
	issueShare, err := parseNullableValue[float64](listing, "issueShare")
	if err != nil {
		return nil, err
	}
	industry, err := parseNullableValue[string](listing, "icbName3")
	if err != nil {
		return nil, err
	}
	profile, err := parseNullableValue[string](listing, "companyProfile")
	if err != nil {
		return nil, err
	}

	info.Overview.Exchange = exchange
	info.Overview.Industry = industry
	if profile != nil {
		text := htmltext.Clean(*profile)
		info.Overview.Profile = &text
	}
	if issueShare != nil {
		n := int64(*issueShare)
		info.Overview.OutstandingShares = &n
	}
	info.CurrentPrice = matchPrice
	info.High52W, info.Low52W = high, low
	info.PE, info.PB = pe, pb
	if matchPrice != nil && issueShare != nil {
		// issueShare is an absolute share count
		mc := decimal.NewFromFloat(*issueShare).Mul(decimal.NewFromFloat(*matchPrice))
		info.MarketCap = &mc
	}

	for _, h := range holders {
		name, err := parseNullableValue[string](h, "ownerFullName")
		if err != nil {
			return nil, err
		}
		pct, err := parseNullableValue[float64](h, "percentage")
		if err != nil {
			return nil, err
		}
		qty, err := parseNullableValue[float64](h, "quantity")
		if err != nil {
			return nil, err
		}
		if name == nil {
			continue
		}
		sh := provider.Shareholder{Name: *name}
		if pct != nil {
			sh.Ownership = *pct
		}
		if qty != nil {
			q := int64(*qty)
			sh.Quantity = &q
		}
		info.Shareholders = append(info.Shareholders, sh)
	}

	for _, m := range managers {
		name, err := parseNullableValue[string](m, "fullName")
		if err != nil {
			return nil, err
		}
		position, err := parseNullableValue[string](m, "positionName")
		if err != nil {
			return nil, err
		}
		pct, err := parseNullableValue[float64](m, "percentage")
		if err != nil {
			return nil, err
		}
		if name == nil {
			continue
		}
		o := provider.Officer{Name: *name, Ownership: pct}
		if position != nil {
			o.Position = *position
		}
		info.Officers = append(info.Officers, o)
	}
	return info, nil
}
