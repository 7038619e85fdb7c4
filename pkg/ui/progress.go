package ui

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"jiraharvest/pkg/harvester"
)

// Progress prints one status line per state change of the harvested
// sources. Observe plugs into harvester.Options.Observer.
type Progress struct {
	mu      sync.Mutex
	pages   map[string]int
	states  map[string]harvester.State
	started time.Time
	now     func() time.Time
}

// NewProgress creates a progress display
func NewProgress() *Progress {
	return &Progress{
		pages:   make(map[string]int),
		states:  make(map[string]harvester.State),
		started: time.Now(),
		now:     time.Now,
	}
}

// Observe records a transition and prints the current line
func (p *Progress) Observe(source string, from, to harvester.State) {
	p.mu.Lock()
	p.states[source] = to
	if from == harvester.StateCheckpointing {
		p.pages[source]++
	}
	line := p.line(source)
	p.mu.Unlock()

	if IsQuietMode() {
		return
	}
	if to.Terminal() {
		printf("\r%s\n", line)
		return
	}
	printf("\r%s", line)
}

// Pages returns the number of committed pages seen for source
func (p *Progress) Pages(source string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages[source]
}

// Active lists sources that have not reached a terminal state
func (p *Progress) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for s, st := range p.states {
		if !st.Terminal() {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func (p *Progress) line(source string) string {
	state := p.states[source]
	elapsed := p.now().Sub(p.started).Round(time.Second)

	label := Cyan(fmt.Sprintf("%-12s", source))
	var st string
	switch state {
	case harvester.StateDone:
		st = Green(string(state))
	case harvester.StateFailed:
		st = Red(string(state))
	case harvester.StateInterrupted:
		st = Yellow(string(state))
	default:
		st = Dim(string(state))
	}
	return fmt.Sprintf("%s %-24s pages %-6d %s%s", label, st, p.pages[source], elapsed, strings.Repeat(" ", 8))
}
