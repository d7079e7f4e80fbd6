// Package listing defines the real-estate item types scraped into
// repositories. Each type embeds the previous one, so a repository created
// for Listing can widen to Property, and one created for Property can widen
// to Dwelling.
package listing

import (
	"strings"

	"github.com/kscrap/kscrap/pkg/kscraperrors"
)

// Contract is the kind of deal a property is offered under.
type Contract string

const (
	ContractSale    Contract = "venta"
	ContractRent    Contract = "alquiler"
	ContractUnknown Contract = ""
)

// ParseContract maps the free text of a listing to a Contract.
func ParseContract(s string) (Contract, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "venta", "sale", "compra":
		return ContractSale, nil
	case "alquiler", "rent", "renta":
		return ContractRent, nil
	case "":
		return ContractUnknown, nil
	default:
		return ContractUnknown, kscraperrors.New(kscraperrors.ErrorTypeData, "unknown contract").
			WithDetail("contract", s)
	}
}

// Listing is the minimal record of a scraped advert.
type Listing struct {
	Street string  `kscrap:"calle"`
	City   string  `kscrap:"ciudad"`
	Area   int32   `kscrap:"m2"`
	Price  float64 `kscrap:"precio"`
}

// Property adds the offer details of a listing.
type Property struct {
	Listing
	Currency  string   `kscrap:"moneda"`
	Contract  Contract `kscrap:"contrato"`
	Phone     string   `kscrap:"numTelefono"`
	DetailURL string   `kscrap:"urlDetalle"`
	// Photos are kept for callers but never stored.
	Photos []string `kscrap:"fotos"`
}

// Dwelling is a property with rooms.
type Dwelling struct {
	Property
	Rooms int32 `kscrap:"numHabitaciones"`
}

// PricePerSquareMeter returns zero when the area is unknown.
func (l Listing) PricePerSquareMeter() float64 {
	if l.Area <= 0 {
		return 0
	}
	return l.Price / float64(l.Area)
}
