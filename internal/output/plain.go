package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// PlainDisplay is the non-interactive Sink: one counting bar per batch label
// and item events sent to the logger. Suitable for pipes and CI logs.
type PlainDisplay struct {
	out   io.Writer
	mu    sync.Mutex
	names map[int]string
	bars  map[string]*progressbar.ProgressBar
	next  int
	fails int
	total int
}

func NewPlainDisplay(out io.Writer) *PlainDisplay {
	if out == nil {
		out = os.Stderr
	}
	return &PlainDisplay{
		out:   out,
		names: make(map[int]string),
		bars:  make(map[string]*progressbar.ProgressBar),
	}
}

func (p *PlainDisplay) RegisterFunction(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	p.total++
	p.names[p.next] = name
	return p.next
}

func (p *PlainDisplay) SetMessage(id int, message string) {
	log.Debug().Str("op", "output/plain").Int("id", id).Msg(message)
}

func (p *PlainDisplay) AddProgressBarToStream(int, int64, int64, string) {}

func (p *PlainDisplay) Complete(id int, message string) {
	log.Info().Str("op", "output/plain").Msgf("%s %s", StyleSymbols["pass"], message)
}

func (p *PlainDisplay) ReportError(id int, err error) {
	p.mu.Lock()
	name := p.names[id]
	p.fails++
	p.mu.Unlock()
	log.Error().Str("op", "output/plain").Err(err).Msgf("%s %s", StyleSymbols["fail"], name)
}

func (p *PlainDisplay) BatchProgress(label string, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bar, ok := p.bars[label]
	if !ok {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(label),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.out) }),
		)
		p.bars[label] = bar
	}
	if bar.GetMax() != total {
		bar.ChangeMax(total)
	}
	_ = bar.Set(done)
}

func (p *PlainDisplay) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, bar := range p.bars {
		_ = bar.Finish()
	}
	if p.fails > 0 {
		fmt.Fprintf(p.out, "Failed %d of %d\n", p.fails, p.total)
	}
}

type discard struct{}

func (discard) RegisterFunction(string) int                      { return 0 }
func (discard) SetMessage(int, string)                           {}
func (discard) AddProgressBarToStream(int, int64, int64, string) {}
func (discard) Complete(int, string)                             {}
func (discard) ReportError(int, error)                           {}
func (discard) BatchProgress(string, int, int)                   {}

// Discard drops every event.
var Discard Sink = discard{}
