// Command turtles-cluster reads a durable TURTLES store and reports the
// connected components of its call graph, under an optional minimum-call
// cutoff, using the distributed MST engine in package mst.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	_ "github.com/mattn/go-sqlite3"

	"github.com/flightaware/turtles/mainboilerplate"
	"github.com/flightaware/turtles/metrics"
	"github.com/flightaware/turtles/mst"
)

type config struct {
	Log        mainboilerplate.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Cutoff     int64                     `long:"cutoff" default:"0" description:"minimum settled-call count for an edge to survive ingestion"`
	Undirected bool                      `long:"undirected" description:"sum both call directions into one edge weight instead of keeping the dominant direction"`
	Verbosity  int                       `long:"verbosity" default:"0" description:"0: cluster lines only, 1+ with --format table: also render a table summary"`
	Format     string                    `long:"format" default:"lines" choice:"lines" choice:"table" description:"output format for the cluster report"`
	Machines   int                       `long:"machines" default:"0" description:"number of simulated MST workers; 0 selects GOMAXPROCS"`
	Unused     bool                      `long:"unused" description:"print defined procs with no settled incoming call instead of clustering"`

	Args struct {
		DBFile string `positional-arg-name:"db-file" required:"true"`
	} `positional-args:"yes"`
}

func main() {
	var cfg config
	parser := flags.NewParser(&cfg, flags.Default)
	mainboilerplate.MustParseArgs(parser)
	mainboilerplate.InitLog(cfg.Log)
	prometheus.MustRegister(metrics.Collectors()...)

	db, err := sql.Open("sqlite3", cfg.Args.DBFile+"?mode=ro")
	if err != nil {
		log.WithError(err).Fatal("opening durable store")
	}
	defer db.Close()

	if cfg.Unused {
		if err := printUnused(db); err != nil {
			log.WithError(err).Fatal("listing unused procs")
		}
		return
	}

	k := cfg.Machines
	if k <= 0 {
		k = runtime.GOMAXPROCS(0)
		if k < 1 {
			k = 1
		}
	}

	nodes, err := mst.LoadGraph(db, cfg.Cutoff, cfg.Undirected)
	if err != nil {
		log.WithError(err).Fatal("loading call graph")
	}
	if len(nodes) == 0 {
		return
	}
	if k > len(nodes) {
		k = len(nodes)
	}

	report, err := mst.Run(context.Background(), nodes, k)
	if err != nil {
		log.WithError(err).Fatal("running MST clustering")
	}

	clusters := groupByRoot(report)
	printLines(os.Stdout, clusters)
	if cfg.Format == "table" && cfg.Verbosity >= 1 {
		printTable(os.Stdout, clusters)
	}
}

func groupByRoot(report []mst.ClusterLine) map[int64][]mst.ClusterLine {
	clusters := make(map[int64][]mst.ClusterLine)
	for _, line := range report {
		clusters[line.Root] = append(clusters[line.Root], line)
	}
	return clusters
}

// printLines emits the required one-line-per-cluster output:
// `<groupProcId> { <procName> ... }`.
func printLines(w *os.File, clusters map[int64][]mst.ClusterLine) {
	roots := sortedRoots(clusters)
	for _, root := range roots {
		members := clusters[root]
		sort.Slice(members, func(i, j int) bool { return members[i].ProcID < members[j].ProcID })
		fmt.Fprintf(w, "%d {", root)
		for _, m := range members {
			fmt.Fprintf(w, " %s", m.ProcName)
		}
		fmt.Fprintln(w, " }")
	}
}

// printTable renders the --format table diagnostic summary: cluster size
// and total spanning-tree edge weight (the sum of each member's edge weight
// to its parent), additional to the required line output above, never a
// replacement for it.
func printTable(w *os.File, clusters map[int64][]mst.ClusterLine) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"root", "members", "total edge weight"})
	for _, root := range sortedRoots(clusters) {
		members := clusters[root]
		var totalWeight int64
		for _, m := range members {
			totalWeight += m.Weight
		}
		table.Append([]string{
			fmt.Sprintf("%d", root),
			fmt.Sprintf("%d", len(members)),
			fmt.Sprintf("%d", totalWeight),
		})
	}
	table.Render()
}

func sortedRoots(clusters map[int64][]mst.ClusterLine) []int64 {
	roots := make([]int64, 0, len(clusters))
	for root := range clusters {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

func printUnused(db *sql.DB) error {
	rows, err := db.Query(`SELECT proc_id, proc_name FROM main.unused_procs ORDER BY proc_id`)
	if err != nil {
		return errors.Wrap(err, "querying unused_procs")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		fmt.Printf("%d %s\n", id, name)
	}
	return rows.Err()
}
