package pricefile

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/lysyi3m/price-comb/app/discovery"
)

// Currency of all transparency-portal price files.
const Currency = "ILS"

// itemContainers lists the per-item element names seen across portals:
// Shufersal-style files use Item, Super-Pharm-style files use Line.
var itemContainers = map[string]bool{
	"Item": true,
	"Line": true,
}

var (
	chainIDRe    = regexp.MustCompile(`<ChainId>\s*(\d+)\s*</ChainId>`)
	subChainIDRe = regexp.MustCompile(`<SubChainId>\s*(\d+)\s*</SubChainId>`)
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Run parses a decompressed price file into normalized records plus a
// parse report. Individual malformed items degrade to counters; only an
// unreadable document is an error.
func (p *Parser) Run(data []byte, desc discovery.FileDescriptor) ([]Record, *Report, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charsetReader

	report := &Report{}
	var records []Record
	docStoreCode := ""

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse price file XML: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		name := start.Name.Local
		if name == "StoreId" || name == "StoreID" {
			if docStoreCode == "" {
				docStoreCode = p.elementText(decoder, &start)
			}
			continue
		}

		if !itemContainers[name] {
			continue
		}

		fields, err := p.collectItemFields(decoder, &start)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse item element: %w", err)
		}
		report.ItemsSeen++

		record, ok := p.normalizeItem(fields, desc, docStoreCode, report)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	return records, report, nil
}

// collectItemFields flattens one item element into tag->text pairs. The
// concrete field set varies by portal, so unknown tags are kept as-is and
// mapping happens in normalizeItem.
func (p *Parser) collectItemFields(decoder *xml.Decoder, start *xml.StartElement) (map[string]string, error) {
	fields := make(map[string]string)
	current := ""
	var text strings.Builder
	depth := 0

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		switch tok := token.(type) {
		case xml.StartElement:
			depth++
			current = tok.Name.Local
			text.Reset()
		case xml.CharData:
			if current != "" {
				text.Write(tok)
			}
		case xml.EndElement:
			if depth == 0 && tok.Name.Local == start.Name.Local {
				return fields, nil
			}
			if current != "" {
				fields[current] = strings.TrimSpace(text.String())
				current = ""
			}
			if depth > 0 {
				depth--
			}
		}
	}
}

func (p *Parser) elementText(decoder *xml.Decoder, start *xml.StartElement) string {
	var value struct {
		Text string `xml:",chardata"`
	}
	if err := decoder.DecodeElement(&value, start); err != nil {
		return ""
	}
	return strings.TrimSpace(value.Text)
}

func (p *Parser) normalizeItem(fields map[string]string, desc discovery.FileDescriptor, docStoreCode string, report *Report) (Record, bool) {
	itemCode := fields["ItemCode"]
	if itemCode == "" {
		// Without an item code the record cannot be keyed at all; it is
		// counted, never silently lost.
		report.MissingItemCode++
		return Record{}, false
	}

	record := Record{
		RetailerID:       desc.RetailerID,
		RetailerItemCode: itemCode,
		Name:             p.itemName(fields, itemCode),
		Brand:            fields["ManufacturerName"],
		Currency:         Currency,
		StoreCode:        p.storeCode(fields, desc, docStoreCode),
		ObservedAt:       p.observedAt(fields, desc),
	}

	record.Barcode = p.barcode(fields, itemCode)
	if record.Barcode != "" {
		report.WithBarcode++
	}

	if priceText, ok := fields["ItemPrice"]; ok && priceText != "" {
		if amount, err := ParsePriceAmount(priceText); err == nil {
			record.PriceAmount = &amount
		} else {
			report.UnparsedPrice++
		}
	} else {
		report.UnparsedPrice++
	}

	return record, true
}

func (p *Parser) itemName(fields map[string]string, itemCode string) string {
	if name := fields["ItemName"]; name != "" {
		return name
	}
	if name := fields["ManufacturerItemDescription"]; name != "" {
		return name
	}
	return "Product " + itemCode
}

// barcode prefers an explicit Barcode element and falls back to the item
// code when it looks like a GTIN (8-13 digits), which is how most chains
// publish it.
func (p *Parser) barcode(fields map[string]string, itemCode string) string {
	if explicit := fields["Barcode"]; isBarcode(explicit) {
		return explicit
	}
	if isBarcode(itemCode) {
		return itemCode
	}
	return ""
}

func isBarcode(s string) bool {
	if len(s) < 8 || len(s) > 13 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// storeCode resolution order: filename pattern, item element, document
// header. Filenames are the most reliable across portals.
func (p *Parser) storeCode(fields map[string]string, desc discovery.FileDescriptor, docStoreCode string) string {
	if desc.StoreCode != "" {
		return desc.StoreCode
	}
	if code := fields["StoreId"]; code != "" {
		return code
	}
	return docStoreCode
}

var priceDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func (p *Parser) observedAt(fields map[string]string, desc discovery.FileDescriptor) time.Time {
	if raw := fields["PriceUpdateDate"]; raw != "" {
		for _, layout := range priceDateLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts
			}
		}
	}
	if desc.DeclaredAt != nil {
		return *desc.DeclaredAt
	}
	return time.Now().UTC()
}

// ParsePriceAmount coerces portal price text into a numeric amount.
// Currency symbols and thousands separators are stripped first; a decimal
// comma becomes a decimal point.
func ParsePriceAmount(text string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '₪', '$', '€', ' ', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(text))
	cleaned = strings.TrimSuffix(cleaned, "NIS")
	cleaned = strings.TrimSpace(cleaned)

	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			// 1,234.56 - comma is a thousands separator
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else if i := strings.LastIndexByte(cleaned, ','); len(cleaned)-i-1 == 2 {
			// 12,50 - decimal comma
			cleaned = cleaned[:i] + "." + cleaned[i+1:]
		} else {
			// 1,234 - thousands separator
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable price text %q", text)
	}
	return amount, nil
}

// VerifyChain checks the document head for the expected chain (and
// optionally sub-chain) identifiers. Filtered-scan portals mix many
// chains' files into one listing and filenames alone can lie.
func VerifyChain(data []byte, chainID, subChainID string) bool {
	head := data
	if len(head) > 2048 {
		head = head[:2048]
	}

	m := chainIDRe.FindSubmatch(head)
	if m == nil || string(m[1]) != chainID {
		return false
	}

	if subChainID != "" {
		sm := subChainIDRe.FindSubmatch(head)
		if sm != nil && string(sm[1]) != subChainID {
			return false
		}
	}

	return true
}

// charsetReader supports the non-UTF-8 declarations some portals emit
// (Windows-1255 most commonly).
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
