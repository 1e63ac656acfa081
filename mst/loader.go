package mst

import "database/sql"

// pairKey identifies the unordered pair of two procs, lower procId first,
// so both call directions between them are tallied under the same key
// regardless of which side happened to call which.
type pairKey struct{ lo, hi int64 }

func pairOf(a, b int64) pairKey {
	if a < b {
		return pairKey{a, b}
	}
	return pairKey{b, a}
}

// LoadGraph builds the initial single-node fragments for every defined
// proc, with undirected edge weights aggregated from settled call traffic.
//
// Edge weight is the count of settled calls between the pair; a call's
// direction contributes to the same undirected weight regardless of who
// called whom, since a fragment's Node models its neighbors as undirected
// weights, not a directed multigraph. With undirected set, a
// caller->callee tally and its reverse callee->caller tally are summed
// into one weight instead of counted as the same tally twice — the
// distinction only matters for mutually-recursive pairs, where without
// this flag only the larger of the two directions is kept (representing
// "the dominant calling direction"), and with it the full bidirectional
// call volume is kept.
//
// cutoff excludes any pair whose aggregated weight is below it, and
// top-level calls (callerId = 0, no ProcRecord) never contribute an edge:
// there is no second node to connect.
func LoadGraph(db *sql.DB, cutoff int64, undirected bool) ([]*Node, error) {
	names, err := loadProcNames(db)
	if err != nil {
		return nil, err
	}

	directed := make(map[pairKey][2]int64) // [0]=lo->hi count, [1]=hi->lo count
	rows, err := db.Query(`SELECT caller_id, callee_id, COUNT(*)
		FROM main.call_pts
		WHERE caller_id != 0 AND time_leave IS NOT NULL
		GROUP BY caller_id, callee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var caller, callee, count int64
		if err := rows.Scan(&caller, &callee, &count); err != nil {
			return nil, err
		}
		if caller == callee {
			continue // self-calls never produce a graph edge
		}
		key := pairOf(caller, callee)
		var slot int
		if caller != key.lo {
			slot = 1
		}
		counts := directed[key]
		counts[slot] += count
		directed[key] = counts
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	nodes := make(map[int64]*Node, names.Len())
	nodeFor := func(id int64) *Node {
		n, ok := nodes[id]
		if !ok {
			name, _ := names.get(id)
			n = NewNode(id, name, map[int64]int64{})
			nodes[id] = n
		}
		return n
	}

	for pair, counts := range directed {
		var weight int64
		if undirected {
			weight = counts[0] + counts[1]
		} else if counts[0] >= counts[1] {
			weight = counts[0]
		} else {
			weight = counts[1]
		}
		if weight < cutoff {
			continue
		}
		nodeFor(pair.lo).Neighbors[pair.hi] = weight
		nodeFor(pair.hi).Neighbors[pair.lo] = weight
	}

	// Every defined proc becomes a node, even one with no surviving edges
	// after the cutoff: it forms its own singleton fragment/cluster.
	for _, id := range names.Keys() {
		if _, ok := nodes[id]; !ok {
			name, _ := names.get(id)
			nodes[id] = NewNode(id, name, map[int64]int64{})
		}
	}

	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out, nil
}

// loadProcNames bulk-loads every proc_id -> proc_name pair once into a
// bounded cache, so building neighbor maps and node names never issues a
// query per edge.
func loadProcNames(db *sql.DB) (*procNameCache, error) {
	rows, err := db.Query(`SELECT proc_id, proc_name FROM main.proc_ids`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := newProcNameCache()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names.put(id, name)
	}
	return names, rows.Err()
}
