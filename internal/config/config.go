// Package config parses the engine's list-valued settings: solver
// registrations, reference price tables, and address lists.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
)

// SolverSpec is one registered solver as given on the command line or
// environment: name|endpoint|account, with an optional fourth field
// "merge" opting the solver into solution merging.
type SolverSpec struct {
	Name     string
	Endpoint string
	Account  domain.Address
	Merge    bool
}

// ParseSolvers parses a comma-separated list of solver specs.
func ParseSolvers(spec string) ([]SolverSpec, error) {
	var solvers []SolverSpec
	seen := make(map[string]bool)

	for _, entry := range splitList(spec) {
		fields := strings.Split(entry, "|")
		if len(fields) < 3 || len(fields) > 4 {
			return nil, fmt.Errorf("solver spec %q: want name|endpoint|account[|merge]", entry)
		}
		s := SolverSpec{
			Name:     strings.TrimSpace(fields[0]),
			Endpoint: strings.TrimSpace(fields[1]),
			Account:  domain.Address(strings.TrimSpace(fields[2])),
		}
		if s.Name == "" || s.Endpoint == "" || s.Account == "" {
			return nil, fmt.Errorf("solver spec %q: empty field", entry)
		}
		if len(fields) == 4 {
			switch strings.TrimSpace(fields[3]) {
			case "merge":
				s.Merge = true
			case "":
			default:
				return nil, fmt.Errorf("solver spec %q: unknown option %q", entry, fields[3])
			}
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("solver spec %q: duplicate name %q", entry, s.Name)
		}
		seen[s.Name] = true
		solvers = append(solvers, s)
	}
	return solvers, nil
}

// ParsePrices parses a comma-separated token=price list into a
// reference price table.
func ParsePrices(spec string) (map[domain.Address]decimal.Decimal, error) {
	prices := make(map[domain.Address]decimal.Decimal)
	for _, entry := range splitList(spec) {
		token, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("price spec %q: want token=price", entry)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("price spec %q: %w", entry, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("price spec %q: price must be positive", entry)
		}
		prices[domain.Address(strings.TrimSpace(token))] = price
	}
	return prices, nil
}

// ParseAddresses parses a comma-separated address list.
func ParseAddresses(spec string) []domain.Address {
	var addrs []domain.Address
	for _, entry := range splitList(spec) {
		addrs = append(addrs, domain.Address(entry))
	}
	return addrs
}

func splitList(spec string) []string {
	var entries []string
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			entries = append(entries, part)
		}
	}
	return entries
}
