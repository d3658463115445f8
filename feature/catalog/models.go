package catalog

import "time"

// Group is a set or expansion.
type Group struct {
	GroupID        int64  `json:"groupId"`
	Name           string `json:"name"`
	Abbreviation   string `json:"abbreviation"`
	IsSupplemental bool   `json:"isSupplemental"`
	PublishedOn    string `json:"publishedOn"`
	ModifiedOn     string `json:"modifiedOn"`
	CategoryID     int64  `json:"categoryId"`
}

// ExtendedData is one free-form attribute of a product.
type ExtendedData struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Value       string `json:"value"`
}

// Product is a raw catalog product.
type Product struct {
	ProductID    int64          `json:"productId"`
	Name         string         `json:"name"`
	CleanName    string         `json:"cleanName"`
	ImageURL     string         `json:"imageUrl"`
	CategoryID   int64          `json:"categoryId"`
	GroupID      int64          `json:"groupId"`
	URL          string         `json:"url"`
	ModifiedOn   string         `json:"modifiedOn"`
	ExtendedData []ExtendedData `json:"extendedData"`
}

// PriceRow is one raw price line; a product has one row per variant.
type PriceRow struct {
	ProductID      int64    `json:"productId"`
	LowPrice       *float64 `json:"lowPrice"`
	MidPrice       *float64 `json:"midPrice"`
	HighPrice      *float64 `json:"highPrice"`
	MarketPrice    *float64 `json:"marketPrice"`
	DirectLowPrice *float64 `json:"directLowPrice"`
	SubTypeName    string   `json:"subTypeName"`
}

// Image processing states of a Record.
const (
	ImageStatusNone      = ""
	ImageStatusPending   = "pending"
	ImageStatusProcessed = "processed"
)

// Record is the normalized card persisted in the cards collection.
type Record struct {
	ID                 int64             `json:"productId"`
	Name               string            `json:"name"`
	CleanName          string            `json:"cleanName"`
	Numbers            []string          `json:"numbers"`
	PrimaryNumber      string            `json:"primaryNumber,omitempty"`
	GroupID            int64             `json:"groupId"`
	Rarity             string            `json:"rarity"`
	Cost               string            `json:"cost"`
	Power              string            `json:"power"`
	Category           string            `json:"category"`
	Job                string            `json:"job"`
	CardType           string            `json:"cardType"`
	Elements           []string          `json:"elements"`
	Description        string            `json:"description"`
	ImageURL           string            `json:"imageUrl"`
	ExtendedAttributes map[string]string `json:"extendedAttributes"`
	Promo              bool              `json:"isPromo"`
	Fingerprint        string            `json:"fingerprint"`
	ModifiedOn         string            `json:"modifiedOn"`
	OfficialCode       string            `json:"officialCode,omitempty"`
	Enriched           bool              `json:"enriched"`
	ImageStatus        string            `json:"imageStatus,omitempty"`
	LastUpdated        time.Time         `json:"lastUpdated"`
}

// HashFields is the canonical hash-relevant projection of a card.
func (r Record) HashFields() map[string]any {
	ext := make(map[string]any, len(r.ExtendedAttributes))
	for k, v := range r.ExtendedAttributes {
		ext[k] = v
	}
	return map[string]any{
		"name":               r.Name,
		"numbers":            r.Numbers,
		"groupId":            r.GroupID,
		"rarity":             r.Rarity,
		"cost":               r.Cost,
		"power":              r.Power,
		"category":           r.Category,
		"job":                r.Job,
		"cardType":           r.CardType,
		"elements":           r.Elements,
		"description":        r.Description,
		"imageUrl":           r.ImageURL,
		"extendedAttributes": ext,
	}
}

// PricePoint is the price of one variant.
type PricePoint struct {
	Low       *float64 `json:"low"`
	Mid       *float64 `json:"mid"`
	High      *float64 `json:"high"`
	Market    *float64 `json:"market"`
	DirectLow *float64 `json:"directLow"`
}

// PriceRecord is the normalized price persisted in the prices collection.
type PriceRecord struct {
	ProductID   int64       `json:"productId"`
	GroupID     int64       `json:"groupId"`
	Normal      *PricePoint `json:"normal"`
	Foil        *PricePoint `json:"foil"`
	Fingerprint string      `json:"fingerprint"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// HashFields is the canonical hash-relevant projection of a price.
func (p PriceRecord) HashFields() map[string]any {
	return map[string]any{
		"productId": p.ProductID,
		"normal":    pointFields(p.Normal),
		"foil":      pointFields(p.Foil),
	}
}

func pointFields(p *PricePoint) any {
	if p == nil {
		return nil
	}
	return map[string]any{
		"low":       p.Low,
		"mid":       p.Mid,
		"high":      p.High,
		"market":    p.Market,
		"directLow": p.DirectLow,
	}
}
