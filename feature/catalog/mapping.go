package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"card-sync/feature/matching"
)

var (
	// ErrSealedProduct marks products that are not single cards (boosters, displays, decks).
	ErrSealedProduct = errors.New("sealed product")
	// ErrMissingNumber marks a non-promotional card without an identifiable card number.
	ErrMissingNumber = errors.New("card has no identifiable number")
)

// Extended data keys of card products.
const (
	fieldNumber      = "Number"
	fieldRarity      = "Rarity"
	fieldCost        = "Cost"
	fieldPower       = "Power"
	fieldCategory    = "Category"
	fieldJob         = "Job"
	fieldCardType    = "CardType"
	fieldElement     = "Element"
	fieldDescription = "Description"
)

var (
	promoName    = regexp.MustCompile(`(?i)\bpromo\b|\(PR[-\s]?\d+`)
	promoInName  = regexp.MustCompile(`(?i)\b(PR[-\s]?\d{3,})\b`)
	elementSplit = regexp.MustCompile(`\s*[;,/]\s*`)
	sealedWords  = []string{"booster", "display", "case", "starter set", "deck", "collection", "bundle", "pack"}
)

// MapProduct converts a raw product into a Record. It returns ErrSealedProduct for products that
// are not cards and ErrMissingNumber for non-promotional cards without a usable number.
func MapProduct(p Product) (Record, error) {
	ext := make(map[string]string, len(p.ExtendedData))
	for _, d := range p.ExtendedData {
		if d.Name == "" {
			continue
		}
		ext[d.Name] = strings.TrimSpace(d.Value)
	}

	if isSealed(p.Name, ext) {
		return Record{}, ErrSealedProduct
	}

	r := Record{
		ID:                 p.ProductID,
		Name:               strings.TrimSpace(p.Name),
		CleanName:          strings.TrimSpace(p.CleanName),
		GroupID:            p.GroupID,
		Rarity:             ext[fieldRarity],
		Cost:               ext[fieldCost],
		Power:              ext[fieldPower],
		Category:           ext[fieldCategory],
		Job:                ext[fieldJob],
		CardType:           ext[fieldCardType],
		Elements:           splitElements(ext[fieldElement]),
		Description:        ext[fieldDescription],
		ImageURL:           p.ImageURL,
		ExtendedAttributes: ext,
		ModifiedOn:         p.ModifiedOn,
	}
	r.Promo = strings.EqualFold(r.Rarity, "Promo") || promoName.MatchString(r.Name)

	r.Numbers = matching.SplitCodes(ext[fieldNumber])
	if len(r.Numbers) == 0 && r.Promo {
		if m := promoInName.FindStringSubmatch(r.Name); m != nil {
			r.Numbers = []string{matching.Normalize(m[1])}
		}
	}
	if len(r.Numbers) == 0 && !r.Promo {
		return Record{}, fmt.Errorf("product %d %q: %w", p.ProductID, p.Name, ErrMissingNumber)
	}
	if len(r.Numbers) > 0 {
		r.PrimaryNumber = r.Numbers[0]
	}
	return r, nil
}

func isSealed(name string, ext map[string]string) bool {
	if ext[fieldNumber] != "" || ext[fieldRarity] != "" || ext[fieldCardType] != "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, w := range sealedWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func splitElements(v string) []string {
	if v == "" {
		return []string{}
	}
	parts := elementSplit.Split(v, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Price variants.
const (
	VariantNormal = "Normal"
	VariantFoil   = "Foil"
)

// GroupPrices merges price rows into one PriceRecord per product, in the order products first
// appear in rows.
// Rows with an unknown variant are ignored.
func GroupPrices(groupID int64, rows []PriceRow) []PriceRecord {
	byID := make(map[int64]*PriceRecord)
	var ids []int64
	for _, row := range rows {
		pr, ok := byID[row.ProductID]
		if !ok {
			pr = &PriceRecord{ProductID: row.ProductID, GroupID: groupID}
			byID[row.ProductID] = pr
			ids = append(ids, row.ProductID)
		}
		point := &PricePoint{
			Low:       row.LowPrice,
			Mid:       row.MidPrice,
			High:      row.HighPrice,
			Market:    row.MarketPrice,
			DirectLow: row.DirectLowPrice,
		}
		switch {
		case strings.EqualFold(row.SubTypeName, VariantFoil):
			pr.Foil = point
		case strings.EqualFold(row.SubTypeName, VariantNormal), row.SubTypeName == "":
			pr.Normal = point
		}
	}

	out := make([]PriceRecord, 0, len(ids))
	for _, id := range ids {
		pr := byID[id]
		if pr.Normal == nil && pr.Foil == nil {
			continue
		}
		out = append(out, *pr)
	}
	return out
}
