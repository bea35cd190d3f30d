package config

import (
	"testing"

	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
)

func TestParseSolvers(t *testing.T) {
	solvers, err := ParseSolvers("alpha|http://alpha:8000/solve|AcctA, beta|http://beta:8000/solve|AcctB|merge")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(solvers) != 2 {
		t.Fatalf("solvers = %d, want 2", len(solvers))
	}
	if solvers[0].Name != "alpha" || solvers[0].Endpoint != "http://alpha:8000/solve" ||
		solvers[0].Account != "AcctA" || solvers[0].Merge {
		t.Fatalf("first solver = %+v", solvers[0])
	}
	if solvers[1].Name != "beta" || !solvers[1].Merge {
		t.Fatalf("second solver = %+v", solvers[1])
	}
}

func TestParseSolversEmpty(t *testing.T) {
	solvers, err := ParseSolvers("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(solvers) != 0 {
		t.Fatalf("solvers = %v, want none", solvers)
	}
}

func TestParseSolversInvalid(t *testing.T) {
	// Missing account, too many fields, empty endpoint, unknown option,
	// duplicate name.
	for _, spec := range []string{
		"alpha|http://alpha:8000",
		"alpha|http://alpha:8000|AcctA|merge|extra",
		"alpha||AcctA",
		"alpha|http://alpha:8000|AcctA|solo",
		"alpha|http://a|AcctA,alpha|http://b|AcctB",
	} {
		if _, err := ParseSolvers(spec); err == nil {
			t.Errorf("ParseSolvers(%q) accepted an invalid spec", spec)
		}
	}
}

func TestParsePrices(t *testing.T) {
	prices, err := ParsePrices("TKX=2.5, TKY=1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("prices = %v, want 2 entries", prices)
	}
	if !prices["TKX"].Equal(decimal.RequireFromString("2.5")) || !prices["TKY"].Equal(decimal.NewFromInt(1)) {
		t.Fatalf("prices = %v, want TKX=2.5 TKY=1", prices)
	}
}

func TestParsePricesInvalid(t *testing.T) {
	for _, spec := range []string{"TKX", "TKX=zero", "TKX=0", "TKX=-1"} {
		if _, err := ParsePrices(spec); err == nil {
			t.Errorf("ParsePrices(%q) accepted an invalid spec", spec)
		}
	}
}

func TestParseAddresses(t *testing.T) {
	addrs := ParseAddresses(" a, ,b ")
	if len(addrs) != 2 || addrs[0] != domain.Address("a") || addrs[1] != domain.Address("b") {
		t.Fatalf("addrs = %v, want [a b]", addrs)
	}
}
