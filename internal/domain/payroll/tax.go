package payroll

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// TaxPolicy supplies the withholding components applied to gross pay.
type TaxPolicy interface {
	Components() []TaxComponent
}

type TaxComponent struct {
	Name string
	Rate decimal.Decimal
}

// FixedRatePolicy applies flat percentages in the listed order.
type FixedRatePolicy []TaxComponent

func (p FixedRatePolicy) Components() []TaxComponent {
	return p
}

func DefaultTaxPolicy() FixedRatePolicy {
	return FixedRatePolicy{
		{Name: TaxFICA, Rate: decimal.RequireFromString("0.062")},
		{Name: TaxMedicare, Rate: decimal.RequireFromString("0.0145")},
		{Name: TaxFedWithholding, Rate: decimal.RequireFromString("0.10")},
	}
}

type taxTableFile struct {
	Default string                         `yaml:"default"`
	Tables  map[string][]taxComponentEntry `yaml:"tables"`
}

type taxComponentEntry struct {
	Name string `yaml:"name"`
	Rate string `yaml:"rate"`
}

// TaxTable holds jurisdiction/year policies loaded from YAML.
type TaxTable struct {
	Default  string
	policies map[string]FixedRatePolicy
}

func LoadTaxTable(path string) (*TaxTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tax table: read file %s: %w", path, err)
	}
	return ParseTaxTable(b)
}

func ParseTaxTable(data []byte) (*TaxTable, error) {
	var file taxTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("tax table: parse yaml: %w", err)
	}
	if len(file.Tables) == 0 {
		return nil, fmt.Errorf("tax table: no tables defined")
	}

	table := &TaxTable{Default: strings.TrimSpace(file.Default), policies: make(map[string]FixedRatePolicy, len(file.Tables))}
	for name, entries := range file.Tables {
		policy, err := buildPolicy(name, entries)
		if err != nil {
			return nil, err
		}
		table.policies[name] = policy
	}
	if table.Default != "" {
		if _, ok := table.policies[table.Default]; !ok {
			return nil, fmt.Errorf("tax table: default %q is not defined", table.Default)
		}
	}
	return table, nil
}

func buildPolicy(table string, entries []taxComponentEntry) (FixedRatePolicy, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("tax table: %s: no components", table)
	}
	seen := make(map[string]struct{}, len(entries))
	policy := make(FixedRatePolicy, 0, len(entries))
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("tax table: %s: component name must be set", table)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("tax table: %s: duplicate component %q", table, name)
		}
		seen[name] = struct{}{}
		rate, err := decimal.NewFromString(strings.TrimSpace(entry.Rate))
		if err != nil {
			return nil, fmt.Errorf("tax table: %s.%s: invalid rate %q: %w", table, name, entry.Rate, err)
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("tax table: %s.%s: rate must not be negative", table, name)
		}
		policy = append(policy, TaxComponent{Name: name, Rate: rate})
	}
	return policy, nil
}

// Policy returns the named table, or the default table when name is empty.
func (t *TaxTable) Policy(name string) (FixedRatePolicy, error) {
	if name == "" {
		name = t.Default
	}
	policy, ok := t.policies[name]
	if !ok {
		return nil, fmt.Errorf("tax table: %q is not defined, choose one of %s", name, strings.Join(t.Names(), ", "))
	}
	return policy, nil
}

// Names lists the defined tables in sorted order.
func (t *TaxTable) Names() []string {
	names := make([]string, 0, len(t.policies))
	for name := range t.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
