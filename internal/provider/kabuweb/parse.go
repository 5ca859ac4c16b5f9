package kabuweb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

// parseListing extracts instrument codes from one listing index page
// and reports whether a next page exists.
func parseListing(html string) ([]string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, err
	}

	var codes []string
	doc.Find("table.stock-list td.code").Each(func(i int, cell *goquery.Selection) {
		code := strings.TrimSpace(cell.Text())
		if code != "" {
			codes = append(codes, code)
		}
	})

	hasMore := doc.Find(".pager-next").Length() > 0
	return codes, hasMore, nil
}

// parseQuote builds a snapshot from one quote page. Field labels follow
// the site's summary table; the financials table carries the prior and
// current fiscal year net profit rows used by the turnaround screen.
func parseQuote(html, code string) (*contracts.InstrumentSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(doc.Find("span.stock-name").First().Text())
	if name == "" {
		return nil, fmt.Errorf("quote page missing stock name")
	}

	fields := make(map[string]string)
	doc.Find("table.quote-summary tr").Each(func(i int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find("th").Text())
		value := strings.TrimSpace(row.Find("td").Text())
		if label != "" {
			fields[label] = value
		}
	})

	snapshot := &contracts.InstrumentSnapshot{
		Code: code,
		Name: name,
	}

	snapshot.Price, err = parseNumber(fields["現在値"])
	if err != nil {
		return nil, fmt.Errorf("bad price %q: %w", fields["現在値"], err)
	}

	snapshot.PriceChangePct, err = parseNumber(fields["前日比"])
	if err != nil {
		return nil, fmt.Errorf("bad change pct %q: %w", fields["前日比"], err)
	}

	volume, err := parseNumber(fields["出来高"])
	if err != nil {
		return nil, fmt.Errorf("bad volume %q: %w", fields["出来高"], err)
	}
	snapshot.Volume = int64(volume)

	snapshot.ListingDate, err = parseDate(fields["上場年月日"])
	if err != nil {
		return nil, fmt.Errorf("bad listing date %q: %w", fields["上場年月日"], err)
	}

	// Optional fields default to zero when absent or dashed out.
	snapshot.PERatio = parseOptionalNumber(fields["PER"])
	snapshot.MarketCap = parseOptionalNumber(fields["時価総額"])
	snapshot.High52W = parseOptionalNumber(fields["52週高値"])
	snapshot.Low52W = parseOptionalNumber(fields["52週安値"])
	snapshot.MA5 = parseOptionalNumber(fields["5日移動平均"])

	if earnings, err := parseDate(fields["決算発表日"]); err == nil {
		snapshot.EarningsDate = &earnings
	}

	parseFinancials(doc, snapshot)

	return snapshot, nil
}

// parseFinancials fills the prior/current fiscal year profit pair. A
// dashed-out row leaves the pointer nil, which the turnaround screen
// treats as insufficient data.
func parseFinancials(doc *goquery.Document, snapshot *contracts.InstrumentSnapshot) {
	var notes []string

	doc.Find("table.financials tr").Each(func(i int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find("td.label").Text())
		raw := strings.TrimSpace(row.Find("td.value").Text())

		switch label {
		case "前期純利益":
			if v, err := parseNumber(raw); err == nil {
				snapshot.PriorProfit = &v
			}
			notes = append(notes, fmt.Sprintf("%s %s", label, raw))
		case "今期予想純利益":
			if v, err := parseNumber(raw); err == nil {
				snapshot.CurrentProfit = &v
			}
			notes = append(notes, fmt.Sprintf("%s %s", label, raw))
		}
	})

	snapshot.ProfitNote = strings.Join(notes, " / ")
}

// parseNumber parses the site's number formats: comma grouping, an
// optional percent sign, "+" prefixes, and "▲" for negative values.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	s = strings.ReplaceAll(s, "▲", "-")

	if s == "" || s == "—" || s == "-" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(s, 64)
}

// parseOptionalNumber is parseNumber with zero for missing values.
func parseOptionalNumber(s string) float64 {
	v, err := parseNumber(s)
	if err != nil {
		return 0
	}
	return v
}

// parseDate parses "2006/01/02" and the long form "2006年1月2日".
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "—" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, err := time.Parse("2006/01/02", s); err == nil {
		return t, nil
	}

	replacer := strings.NewReplacer("年", "/", "月", "/", "日", "")
	return time.Parse("2006/1/2", replacer.Replace(s))
}
