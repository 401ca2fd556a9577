package instruments

import "fmt"

// Domain groups instruments that share a source list, a schedule and a gate.
type Domain string

const (
	DomainForex       Domain = "forex"
	DomainCrypto      Domain = "crypto"
	DomainIndices     Domain = "indices"
	DomainCommodities Domain = "commodities"
	DomainInterbank   Domain = "interbank"
)

func (d Domain) String() string {
	return string(d)
}

func (d Domain) IsValid() bool {
	switch d {
	case DomainForex, DomainCrypto, DomainIndices, DomainCommodities, DomainInterbank:
		return true
	default:
		return false
	}
}

func NewDomain(s string) (Domain, error) {
	d := Domain(s)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid domain: %s", s)
	}
	return d, nil
}
