package domain

import (
	"sort"
	"strconv"
)

// Column names the grouping logic depends on. Everything else in a row is
// opaque sheet data carried through as-is.
const (
	ColDataID     = "Data ID"
	ColMemberName = "Name of Household Member/s"
	ColHeadName   = "Household Head Name"
	ColBarangay   = "Barangay"
)

// Row is one sheet row keyed by header column.
type Row map[string]string

// Household groups the rows sharing a Data ID: one head row plus any number
// of member rows.
type Household struct {
	DataID  string `json:"data_id"`
	Head    Row    `json:"head"`
	Members []Row  `json:"members"`
}

// GroupHouseholds folds raw sheet rows into households. A row with an empty
// member-name column is the head; when no head row exists the first member is
// promoted. Households come back sorted by numeric Data ID.
func GroupHouseholds(rows []Row) []Household {
	grouped := make(map[string]*Household)
	for _, r := range rows {
		id := r[ColDataID]
		if id == "" {
			continue
		}
		g, ok := grouped[id]
		if !ok {
			g = &Household{DataID: id}
			grouped[id] = g
		}
		if r[ColMemberName] == "" && g.Head == nil {
			g.Head = r
		} else {
			g.Members = append(g.Members, r)
		}
	}

	for _, g := range grouped {
		if g.Head == nil && len(g.Members) > 0 {
			g.Head = g.Members[0]
			g.Members = g.Members[1:]
		}
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})

	out := make([]Household, 0, len(ids))
	for _, id := range ids {
		out = append(out, *grouped[id])
	}
	return out
}
