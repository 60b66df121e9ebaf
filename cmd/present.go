package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/state"
)

// storePresentable renders a state.Store as one "<item_id>: <value>" line
// per entry, in the store's own iteration order.
type storePresentable struct {
	title string
	store *state.Store
}

func (p storePresentable) PresentTitle() string { return p.title }

func (p storePresentable) String() string {
	var b strings.Builder
	_ = p.store.Iter(func(itemID id.ItemID, v state.ErasedState) error {
		fmt.Fprintf(&b, "  %s: %+v\n", itemID, v)
		return nil
	})
	return b.String()
}

func (p storePresentable) TableHeaders() []string { return []string{"ITEM", "STATE"} }

func (p storePresentable) TableRows() [][]string {
	rows := make([][]string, 0, p.store.Len())
	_ = p.store.Iter(func(itemID id.ItemID, v state.ErasedState) error {
		rows = append(rows, []string{itemID.String(), fmt.Sprintf("%+v", v)})
		return nil
	})
	return rows
}

// diffPresentable renders a per-item diff map, sorted by item id for
// deterministic output.
type diffPresentable[D any] struct {
	title string
	diffs map[id.ItemID]D
}

func (p diffPresentable[D]) PresentTitle() string { return p.title }

func (p diffPresentable[D]) String() string {
	ids := make([]id.ItemID, 0, len(p.diffs))
	for itemID := range p.diffs {
		ids = append(ids, itemID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	var b strings.Builder
	for _, itemID := range ids {
		fmt.Fprintf(&b, "  %s: %+v\n", itemID, p.diffs[itemID])
	}
	return b.String()
}

func (p diffPresentable[D]) TableHeaders() []string { return []string{"ITEM", "DIFF"} }

func (p diffPresentable[D]) TableRows() [][]string {
	ids := make([]id.ItemID, 0, len(p.diffs))
	for itemID := range p.diffs {
		ids = append(ids, itemID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	rows := make([][]string, 0, len(ids))
	for _, itemID := range ids {
		rows = append(rows, []string{itemID.String(), fmt.Sprintf("%+v", p.diffs[itemID])})
	}
	return rows
}
