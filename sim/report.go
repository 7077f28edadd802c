package sim

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jwmdev/edgesim/model"
)

// ReportSummary carries end-of-run metrics needed for reporting.
type ReportSummary struct {
	Steps        int
	Generated    int
	Finished     int
	Dropped      int
	StillRunning int
}

// WriteCSVReport writes a per-packet CSV report to the given path or
// directory. If reportPath is a directory, it creates a timestamped file
// inside; if it is a file, a timestamp is suffixed before the extension.
func WriteCSVReport(reportPath string, w *World, sum ReportSummary) (string, error) {
	if reportPath == "" {
		return "", nil
	}
	ts := time.Now().Format("20060102-150405")
	outPath := reportPath
	if fi, err := os.Stat(outPath); err == nil && fi.IsDir() {
		outPath = filepath.Join(outPath, fmt.Sprintf("report-%s.csv", ts))
	} else if outPath != "" {
		ext := filepath.Ext(outPath)
		base := outPath[:len(outPath)-len(ext)]
		outPath = fmt.Sprintf("%s-%s%s", base, ts, ext)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fmt.Fprintln(f, "packet_id,user,application,status,size,queue_delay,transmission_delay,processing_delay,propagation_delay,total_delay")
	for _, id := range sortedPacketKeys(w.Packets) {
		p := w.Packets[id]
		c := p.Collect()
		fmt.Fprintf(f, "%s,%s,%s,%s,%d,%d,%d,%d,%d,%d\n",
			c["Id"], c["User"], c["Application"], p.Status, c["Size"],
			c["Queue Delay"], c["Transmission Delay"], c["Processing Delay"], c["Propagation Delay"], c["Total Delay"])
	}
	fmt.Fprintf(f, "summary,,,,,,,,,\n")
	fmt.Fprintf(f, "# steps=%d generated=%d finished=%d dropped=%d running=%d\n", sum.Steps, sum.Generated, sum.Finished, sum.Dropped, sum.StillRunning)
	return outPath, nil
}

// PrintConsoleReport prints a human-readable summary to stdout.
func PrintConsoleReport(w *World, sum ReportSummary) {
	fmt.Println("=== Simulation Report ===")
	fmt.Printf("Steps run: %d\n", sum.Steps)
	fmt.Printf("Packets generated: %d\n", sum.Generated)
	fmt.Printf("Packets finished: %d\n", sum.Finished)
	fmt.Printf("Packets dropped: %d\n", sum.Dropped)
	fmt.Printf("Packets still in flight: %d\n", sum.StillRunning)

	var totalDelay int
	var counted int
	for _, id := range sortedPacketKeys(w.Packets) {
		p := w.Packets[id]
		if p.Status != model.PacketFinished {
			continue
		}
		c := p.Collect()
		if td, ok := c["Total Delay"].(int); ok {
			totalDelay += td
			counted++
		}
	}
	if counted > 0 {
		fmt.Printf("Average total delay (finished packets): %.2f\n", float64(totalDelay)/float64(counted))
	}
}

// Summarize snapshots the current World into a ReportSummary.
func Summarize(w *World, generated int) ReportSummary {
	sum := ReportSummary{Steps: w.Tick, Generated: generated}
	for _, p := range w.Packets {
		switch p.Status {
		case model.PacketFinished:
			sum.Finished++
		case model.PacketDropped:
			sum.Dropped++
		default:
			sum.StillRunning++
		}
	}
	return sum
}

func sortedPacketKeys(m map[string]*model.DataPacket) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
