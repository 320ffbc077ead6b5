// saveinspect verifies a session save file and prints a summary of it.
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/tetrarogue/sim/internal/persist"
	"gopkg.in/yaml.v3"
)

type summary struct {
	Step uint64 `yaml:"step"`

	Store struct {
		Things []struct {
			ID         uint64               `yaml:"id"`
			Components map[string]yaml.Node `yaml:"components"`
		} `yaml:"things"`
	} `yaml:"store"`

	Gravity struct {
		Tracked []struct {
			Status string `yaml:"status"`
		} `yaml:"tracked"`
	} `yaml:"gravity"`

	Scheduler struct {
		Tick  uint64     `yaml:"tick"`
		Queue []struct{} `yaml:"queue"`
	} `yaml:"scheduler"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: saveinspect <session.yaml> [-dump]")
		os.Exit(1)
	}

	doc, err := persist.ReadSave(os.Args[1])
	if errors.Is(err, persist.ErrIncompatibleSave) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(os.Args) > 2 && os.Args[2] == "-dump" {
		out, err := yaml.Marshal(doc)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	var s summary
	if err := doc.Decode(&s); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	kinds := make(map[string]int)
	for _, t := range s.Store.Things {
		for name := range t.Components {
			kinds[name]++
		}
	}
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make(map[string]int)
	for _, t := range s.Gravity.Tracked {
		statuses[t.Status]++
	}

	fmt.Printf("save version %d, step %d, tick %d\n", persist.SaveVersion, s.Step, s.Scheduler.Tick)
	fmt.Printf("entities: %d\n", len(s.Store.Things))
	for _, name := range names {
		fmt.Printf("  %-16s %d\n", name, kinds[name])
	}
	fmt.Printf("queued turns: %d\n", len(s.Scheduler.Queue))
	fmt.Printf("gravity tracked: %d (rest %d, sink %d, stuck %d)\n",
		len(s.Gravity.Tracked), statuses["rest"], statuses["sink"], statuses["stuck"])
}
