package vci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/PaesslerAG/jsonpath"

	"vnmarket/internal/provider"
)

const graphqlPath = "/data-mt/graphql"

type graphqlRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

// graphql posts query and returns the decoded response document. A response
// whose data is null is NotFound when the server reported errors and NoData
// otherwise.
func (c *Client) graphql(ctx context.Context, op, query string, vars map[string]string) (any, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, provider.NewError(provider.KindInvalidInput, Name, op, err)
	}

	var doc any
	err = c.transport.JSON(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+graphqlPath, bytes.NewReader(payload))
	}, &doc)
	if err != nil {
		return nil, err
	}

	msgs := graphqlErrors(doc)
	data, _ := lookup(doc, "$.data").(map[string]any)
	if data == nil {
		if len(msgs) > 0 {
			return nil, provider.Errorf(provider.KindNotFound, Name, op, "%s: %v", vars["ticker"], msgs)
		}
		return nil, provider.Errorf(provider.KindNoData, Name, op, "%s: empty response", vars["ticker"])
	}
	if len(msgs) > 0 {
		c.logger.Printf("vci %s: %s: partial response: %v", op, vars["ticker"], msgs)
	}
	return doc, nil
}

func graphqlErrors(doc any) []string {
	list, _ := lookup(doc, "$.errors").([]any)
	var out []string
	for _, e := range list {
		if msg, ok := lookup(e, "$.message").(string); ok {
			out = append(out, msg)
		} else {
			out = append(out, fmt.Sprint(e))
		}
	}
	return out
}

// lookup evaluates a JSONPath against doc. Missing keys yield nil.
func lookup(doc any, path string) any {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil
	}
	return v
}

// object returns the object at path, or nil.
func object(doc any, path string) map[string]any {
	m, _ := lookup(doc, path).(map[string]any)
	return m
}

// objects returns the list of objects at path, skipping non-objects.
func objects(doc any, path string) []map[string]any {
	list, _ := lookup(doc, path).([]any)
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// parseNullableValue is a helper function to parse a nullable value.
func parseNullableValue[T any](data map[string]any, key string) (*T, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return nil, nil
	}
	if v, ok := v.(T); ok {
		return &v, nil
	}
	return nil, fmt.Errorf("%s: unexpected type: %T", key, v)
}

const companyQuery = `query Query($ticker: String!, $lang: String!) {
  TickerPriceInfo(ticker: $ticker) {
    ticker
    exchange
    matchPrice
    referencePrice
    highestPrice1Year
    lowestPrice1Year
    financialRatio {
      yearReport
      lengthReport
      pe
      pb
      roe
      roa
      eps
      issueShare
      charterCapital
      __typename
    }
    __typename
  }
  CompanyListingInfo(ticker: $ticker) {
    id
    issueShare
    companyProfile
    icbName2
    icbName3
    icbName4
    history
    __typename
  }
  OrganizationManagers(ticker: $ticker) {
    id
    ticker
    fullName
    positionName
    positionShortName
    updateDate
    percentage
    quantity
    __typename
  }
  OrganizationShareHolders(ticker: $ticker) {
    id
    ticker
    ownerFullName
    quantity
    percentage
    updateDate
    __typename
  }
}`

const financialRatioQuery = `fragment Ratios on CompanyFinancialRatio {
  ticker yearReport lengthReport updateDate
  revenue revenueGrowth netProfit netProfitGrowth ebitMargin roe roic roa pe pb eps
  currentRatio cashRatio quickRatio interestCoverage ae netProfitMargin grossMargin
  ev issueShare ps pcf bvps evPerEbitda at fat acp dso dpo ccc de le ebitda ebit
  dividend RTQ10 charterCapitalRatio RTQ4 epsTTM charterCapital fae RTQ17
  BSA1 BSA2 BSA5 BSA8 BSA10 BSA15 BSA16 BSA18 BSA22 BSA23 BSA24 BSA27 BSA29 BSA30
  BSA33 BSA36 BSA40 BSA43 BSA44 BSA45 BSA46 BSA47 BSA48 BSA49 BSA50 BSA53 BSA54
  BSA55 BSA56 BSA58 BSA67 BSA71 BSA78 BSA79 BSA80 BSA82 BSA84 BSA85 BSA86 BSA89
  BSA90 BSA92 BSA94 BSA95 BSA96 BSA159 BSA162 BSA173 BSA175 BSA209 BSA210
  BSB97 BSB98 BSB99 BSB100 BSB101 BSB102 BSB103 BSB104 BSB105 BSB106 BSB107 BSB108
  BSB109 BSB110 BSB111 BSB112 BSB113 BSB114 BSB115 BSB116 BSB117 BSB118 BSB121
  ISA1 ISA2 ISA3 ISA4 ISA5 ISA6 ISA7 ISA8 ISA9 ISA10 ISA11 ISA12 ISA13 ISA14 ISA15
  ISA16 ISA17 ISA18 ISA19 ISA20 ISA21 ISA22 ISA23 ISA102
  ISB25 ISB26 ISB27 ISB28 ISB29 ISB30 ISB31 ISB32 ISB33 ISB34 ISB35 ISB36 ISB37
  ISB38 ISB39 ISB40 ISB41 ISS141 ISS146 ISS148 ISS152 ISI64 ISI87 ISI97
  CFA1 CFA2 CFA3 CFA4 CFA5 CFA6 CFA7 CFA8 CFA9 CFA10 CFA11 CFA12 CFA13 CFA14 CFA15
  CFA16 CFA17 CFA18 CFA19 CFA20 CFA21 CFA22 CFA23 CFA24 CFA25 CFA26 CFA27 CFA28
  CFA29 CFA30 CFA31 CFA32 CFA33 CFA34 CFA35 CFA36 CFA37 CFA38
  CFB64 CFB65 CFB80 CFS191 CFS200 CFS210
  __typename
}

query Query($ticker: String!, $period: String!) {
  CompanyFinancialRatio(ticker: $ticker, period: $period) {
    ratio {
      ...Ratios
      __typename
    }
    period
    __typename
  }
}`
