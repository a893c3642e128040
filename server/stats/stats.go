package stats

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shirou/gopsutil/process"

	"github.com/openmana/accountserver/engine/omlog"
	"github.com/openmana/accountserver/server/registry"
)

// Aggregator renders point-in-time views of the map registry for
// operators. It only reads registry snapshots and never blocks message
// processing.
type Aggregator struct {
	registry *registry.MapRegistry
	proc     *process.Process
}

// NewAggregator creates an Aggregator over the registry
func NewAggregator(reg *registry.MapRegistry) *Aggregator {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		omlog.Errorf("stats: read own process failed: %v", err)
	}
	return &Aggregator{
		registry: reg,
		proc:     proc,
	}
}

// Dump renders a table of every registered game server with a non-empty
// advertised port and the latest statistics of each map it serves
func (a *Aggregator) Dump() string {
	snapshot := a.registry.Snapshot()
	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].Address != snapshot[j].Address {
			return snapshot[i].Address < snapshot[j].Address
		}
		return snapshot[i].Port < snapshot[j].Port
	})

	buf := bytes.Buffer{}
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"ADDRESS", "PORT", "MAP", "THINGS", "MONSTERS", "PLAYERS"})

	for _, server := range snapshot {
		if server.Port == 0 {
			// connected but not registered yet
			continue
		}

		maps := server.Maps
		sort.Slice(maps, func(i, j int) bool { return maps[i].MapID < maps[j].MapID })
		if len(maps) == 0 {
			table.Append([]string{server.Address, strconv.Itoa(int(server.Port)), "-", "-", "-", "-"})
			continue
		}

		for _, m := range maps {
			players := make([]string, len(m.Stats.Players))
			for i, id := range m.Stats.Players {
				players[i] = strconv.Itoa(int(id))
			}
			table.Append([]string{
				server.Address,
				strconv.Itoa(int(server.Port)),
				strconv.Itoa(int(m.MapID)),
				strconv.Itoa(int(m.Stats.Things)),
				strconv.Itoa(int(m.Stats.Monsters)),
				strings.Join(players, " "),
			})
		}
	}

	table.Render()
	return buf.String()
}

// ProcessSummary returns a one-line cpu and memory summary of the
// account server process
func (a *Aggregator) ProcessSummary() string {
	if a.proc == nil {
		return "process stats unavailable"
	}

	cpuPercent, err := a.proc.CPUPercent()
	if err != nil {
		return fmt.Sprintf("cpu read failed: %v", err)
	}
	memInfo, err := a.proc.MemoryInfo()
	if err != nil {
		return fmt.Sprintf("mem read failed: %v", err)
	}
	return fmt.Sprintf("cpu=%.1f%% rss=%dMB", cpuPercent, memInfo.RSS/1024/1024)
}

// DumpToLog writes the current dump to the log, for the periodic tick
func (a *Aggregator) DumpToLog() {
	omlog.Infof("game server statistics (%s):\n%s", a.ProcessSummary(), a.Dump())
}

// ServeHTTP serves the dump on the admin HTTP surface
func (a *Aggregator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%s\n%s", a.ProcessSummary(), a.Dump())
}
