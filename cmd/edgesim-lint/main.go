// Command edgesim-lint validates a topology JSON document against the
// rules model.LoadTopologyFromReader enforces (unknown switch references,
// duplicate links, unattached servers) and rewrites it in normalized,
// indented form.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jwmdev/edgesim/model"
)

type topologyDoc struct {
	Switches []switchDoc `json:"switches"`
	Links    []linkDoc   `json:"links"`
	Servers  []serverDoc `json:"servers"`
}

type switchDoc struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type linkDoc struct {
	A         string  `json:"a"`
	B         string  `json:"b"`
	Bandwidth float64 `json:"bandwidth"`
	Delay     int     `json:"delay"`
}

type serverDoc struct {
	ID       string `json:"id"`
	SwitchID string `json:"switch_id"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: edgesim-lint <topology-json-file>")
		os.Exit(1)
	}
	path := os.Args[1]
	if err := lint(path); err != nil {
		fmt.Fprintf(os.Stderr, "edgesim-lint: %v\n", err)
		os.Exit(1)
	}
}

func lint(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if _, _, err := model.LoadTopologyFromReader(bytes.NewReader(b)); err != nil {
		return fmt.Errorf("invalid topology: %w", err)
	}

	var doc topologyDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("ok: %s (%d switches, %d links, %d servers)\n", path, len(doc.Switches), len(doc.Links), len(doc.Servers))
	return nil
}
