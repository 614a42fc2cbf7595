package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
	"github.com/wadjakorntonsri/collection-sorter/pkg/core/services"
)

// Step is one screen of work in a reorder file: load a page under some filters,
// then drag items or give the full page order.
type Step struct {
	Page    int                       `json:"page"`
	Filters []domain.AdditionalFilter `json:"filters,omitempty"`
	Moves   []Move                    `json:"moves,omitempty"`
	Order   []string                  `json:"order,omitempty"`
}

// Move is a single drag of Active onto Over, both written as "productCode-colorCode".
type Move struct {
	Active string `json:"active"`
	Over   string `json:"over"`
}

func readSteps(r io.Reader) ([]Step, error) {
	var steps []Step
	if err := json.NewDecoder(r).Decode(&steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	for i, s := range steps {
		if len(s.Moves) > 0 && len(s.Order) > 0 {
			return nil, fmt.Errorf("step %d: moves and order are mutually exclusive", i+1)
		}
	}
	return steps, nil
}

func replay(ctx context.Context, session *services.EditSession, steps []Step) error {
	for i, step := range steps {
		session.ClearFilters()
		for _, f := range step.Filters {
			session.AddFilter(f)
		}
		if _, err := session.LoadPage(ctx, step.Page); err != nil {
			return fmt.Errorf("step %d: load page %d: %w", i+1, step.Page, err)
		}

		for _, m := range step.Moves {
			active, err := domain.ParseVariantKey(m.Active)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			over, err := domain.ParseVariantKey(m.Over)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			if _, err := session.DragEnd(active, over); err != nil {
				return fmt.Errorf("step %d: move %s onto %s: %w", i+1, m.Active, m.Over, err)
			}
		}

		if len(step.Order) > 0 {
			keys := make([]domain.VariantKey, 0, len(step.Order))
			for _, raw := range step.Order {
				key, err := domain.ParseVariantKey(raw)
				if err != nil {
					return fmt.Errorf("step %d: %w", i+1, err)
				}
				keys = append(keys, key)
			}
			if _, err := session.ApplyPageOrder(keys); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
	}
	return nil
}

// filterFlags collects repeated -filter id=value[:comparisonType] flags.
type filterFlags []domain.AdditionalFilter

func (f *filterFlags) String() string {
	parts := make([]string, len(*f))
	for i, af := range *f {
		parts[i] = fmt.Sprintf("%s=%s:%d", af.ID, af.Value, af.ComparisonType)
	}
	return strings.Join(parts, ",")
}

func (f *filterFlags) Set(raw string) error {
	af, err := parseFilter(raw)
	if err != nil {
		return err
	}
	*f = append(*f, af)
	return nil
}

func parseFilter(raw string) (domain.AdditionalFilter, error) {
	id, rest, ok := strings.Cut(raw, "=")
	if !ok || id == "" || rest == "" {
		return domain.AdditionalFilter{}, fmt.Errorf("filter %q: want id=value[:comparisonType]", raw)
	}

	af := domain.AdditionalFilter{ID: id, Value: rest}
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		cmp, err := strconv.Atoi(rest[i+1:])
		if err != nil {
			return domain.AdditionalFilter{}, fmt.Errorf("filter %q: comparison type: %w", raw, err)
		}
		af.Value = rest[:i]
		af.ComparisonType = cmp
	}
	return af, nil
}
