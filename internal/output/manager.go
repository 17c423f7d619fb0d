package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Sink receives progress and status events for downloads and merges.
type Sink interface {
	RegisterFunction(name string) int
	SetMessage(id int, message string)
	AddProgressBarToStream(id int, done, total int64, text string)
	Complete(id int, message string)
	ReportError(id int, err error)
	BatchProgress(label string, done, total int)
}

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type FunctionOutput struct {
	ID          int
	Name        string
	Status      Status
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	FunctionName string
	Error        error
	Time         time.Time
}

type batchState struct {
	label string
	done  int
	total int
}

// Manager redraws a live, lipgloss-styled view of every registered function
// on a ticker and prints a summary with all errors when stopped.
type Manager struct {
	out           io.Writer
	outputs       map[int]*FunctionOutput
	mutex         sync.RWMutex
	numLines      int
	errors        []ErrorReport
	batches       []*batchState
	doneCh        chan struct{}
	displayTick   time.Duration
	functionCount int
	displayWg     sync.WaitGroup
}

func NewManager() *Manager {
	return NewManagerTo(os.Stdout)
}

func NewManagerTo(out io.Writer) *Manager {
	return &Manager{
		out:         out,
		outputs:     make(map[int]*FunctionOutput),
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

func (m *Manager) RegisterFunction(name string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.functionCount++
	m.outputs[m.functionCount] = &FunctionOutput{
		ID:          m.functionCount,
		Name:        name,
		Status:      StatusPending,
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}
	return m.functionCount
}

func (m *Manager) SetMessage(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Message = message
		if info.Status == StatusPending {
			info.Status = StatusActive
		}
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) Complete(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.StreamLines = nil
		if message == "" {
			message = fmt.Sprintf("Completed %s", info.Name)
		}
		info.Message = message
		info.Complete = true
		info.Status = StatusSuccess
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.StreamLines = nil
		info.Message = fmt.Sprintf("Failed %s", info.Name)
		info.Complete = true
		info.Status = StatusError
		info.Error = err
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{
			FunctionName: info.Name,
			Error:        err,
			Time:         time.Now(),
		})
	}
}

func (m *Manager) AddProgressBarToStream(id int, done, total int64, text string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		progressBar := PrintProgressBar(done, total, 30)
		elapsed := time.Since(info.StartTime).Seconds()
		display := fmt.Sprintf("%s%s %s %s", progressBar, debugStyle.Render(text), StyleSymbols["bullet"], debugStyle.Render(FormatSpeed(done, elapsed)))
		info.StreamLines = []string{display}
		info.LastUpdated = time.Now()
	}
}

// BatchProgress records how many items of a labelled batch have finished.
func (m *Manager) BatchProgress(label string, done, total int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, b := range m.batches {
		if b.label == label {
			b.done, b.total = done, total
			return
		}
	}
	m.batches = append(m.batches, &batchState{label: label, done: done, total: total})
}

func (m *Manager) Counts() (success, failures, total int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, info := range m.outputs {
		switch info.Status {
		case StatusSuccess:
			success++
		case StatusError:
			failures++
		}
	}
	return success, failures, len(m.outputs)
}

func (m *Manager) GetStatusIndicator(status Status) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case StatusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case StatusPending:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleMessage(status Status, message string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(message)
	case StatusError:
		return errorStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) sortFunctions() (active, pending, completed []*FunctionOutput) {
	all := make([]*FunctionOutput, 0, len(m.outputs))
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})
	for _, f := range all {
		switch {
		case f.Complete:
			completed = append(completed, f)
		case f.Status == StatusPending:
			pending = append(pending, f)
		default:
			active = append(active, f)
		}
	}
	return active, pending, completed
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, termHeight := getTerminalSize()
	availableLines := termHeight - 3
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}

	lineCount := 0
	indent := strings.Repeat(" ", 2)
	streamIndent := strings.Repeat(" ", 2+4)
	printStreams := func(lines []string) {
		for _, line := range lines {
			if lineCount >= availableLines {
				return
			}
			fmt.Fprintf(m.out, "%s%s\n", streamIndent, streamStyle.Render(line))
			lineCount++
		}
	}

	for _, b := range m.batches {
		if lineCount >= availableLines {
			break
		}
		fmt.Fprintf(m.out, "%s%s %s%s\n", indent, headerStyle.Render(b.label),
			PrintProgressBar(int64(b.done), int64(b.total), 20), debugStyle.Render(fmt.Sprintf("%d/%d", b.done, b.total)))
		lineCount++
	}

	active, pending, completed := m.sortFunctions()
	if len(completed) > 8 {
		hidden := len(completed) - 8
		completed = completed[hidden:]
		if lineCount < availableLines {
			fmt.Fprintf(m.out, "%s%s\n", indent, infoStyle.Render(fmt.Sprintf("%d earlier items finished ...", hidden)))
			lineCount++
		}
	}

	for _, info := range active {
		if lineCount >= availableLines {
			break
		}
		elapsed := time.Since(info.StartTime).Round(time.Second)
		fmt.Fprintf(m.out, "%s%s %s %s\n", indent, m.GetStatusIndicator(info.Status), debugStyle.Render(elapsed.String()), styleMessage(info.Status, info.Message))
		lineCount++
		printStreams(info.StreamLines)
	}
	for _, info := range pending {
		if lineCount >= availableLines {
			break
		}
		fmt.Fprintf(m.out, "%s%s %s\n", indent, m.GetStatusIndicator(info.Status), pendingStyle.Render("Waiting... "+info.Name))
		lineCount++
	}
	for _, info := range completed {
		if lineCount >= availableLines {
			break
		}
		total := info.LastUpdated.Sub(info.StartTime).Round(time.Second)
		fmt.Fprintf(m.out, "%s%s %s %s\n", indent, m.GetStatusIndicator(info.Status), debugStyle.Render(total.String()), styleMessage(info.Status, info.Message))
		lineCount++
	}
	m.numLines = lineCount
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, err := range m.errors {
		fmt.Fprintf(m.out, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(err.FunctionName))
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

func (m *Manager) ShowSummary() {
	success, failures, total := m.Counts()
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, total)))
	if failures > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, total)))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}
