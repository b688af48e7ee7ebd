package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/taskmon/internal/config"
	"github.com/Dicklesworthstone/taskmon/internal/history"
	"github.com/Dicklesworthstone/taskmon/internal/model"
	"github.com/Dicklesworthstone/taskmon/internal/scheduler"
)

const processRows = 15

var sortOrder = []string{"cpu", "mem", "pid", "name"}

// Model renders snapshots published by the scheduler.
type Model struct {
	sched   *scheduler.Scheduler
	updates <-chan model.Snapshot
	latest  model.Snapshot
	sortKey string
	cursor  int
	status  string
	width   int
	height  int
}

func New(sched *scheduler.Scheduler, cfg config.Config) *Model {
	return &Model{
		sched:   sched,
		updates: sched.Subscribe(),
		latest:  sched.Snapshot(),
		sortKey: cfg.Sort,
		width:   120,
		height:  40,
	}
}

// Messages
type (
	tickMsg struct{}
	killMsg struct {
		pid    int
		signal string
		err    string
	}
)

func tickCmd() tea.Cmd { return tea.Tick(time.Second/5, func(time.Time) tea.Msg { return tickMsg{} }) }

func (m *Model) Init() tea.Cmd { return tickCmd() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.visible())-1 {
				m.cursor++
			}
		case "s":
			m.sortKey = nextSort(m.sortKey)
			m.status = "sort: " + m.sortKey
		case "g":
			if n := len(m.latest.GPUs); n > 1 {
				next := (m.latest.SelectedGPU + 1) % n
				if m.sched.SelectGPU(next) {
					m.latest.SelectedGPU = next
				}
			}
		case "t":
			return m, m.killSelected("SIGTERM")
		case "K":
			return m, m.killSelected("SIGKILL")
		}
	case killMsg:
		if msg.err != "" {
			m.status = fmt.Sprintf("%s %d failed: %s", msg.signal, msg.pid, msg.err)
		} else {
			m.status = fmt.Sprintf("sent %s to %d", msg.signal, msg.pid)
		}
	case tickMsg:
		select {
		case snap := <-m.updates:
			m.latest = snap
			if n := len(m.visible()); m.cursor >= n {
				m.cursor = max(0, n-1)
			}
		default:
		}
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) killSelected(signal string) tea.Cmd {
	rows := m.visible()
	if m.cursor >= len(rows) {
		return nil
	}
	pid := rows[m.cursor].PID
	sched := m.sched
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		res := sched.KillProcess(ctx, pid, signal)
		return killMsg{pid: pid, signal: signal, err: res.Error}
	}
}

// visible is the sorted, truncated process list shown in the table.
func (m *Model) visible() []model.Process {
	procs := sortProcesses(m.latest.Processes, m.sortKey)
	if len(procs) > processRows {
		procs = procs[:processRows]
	}
	return procs
}

// Styles
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	gaugeFill     = "█"
	gaugeEmpty    = "░"
	sparkTicks    = []rune("▁▂▃▄▅▆▇█")
	cardStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

func (m *Model) View() string {
	s := m.latest
	header := titleStyle.Render("taskmon") + "  " +
		subtleStyle.Render(s.Timestamp.Format("Mon Jan 2 15:04:05 MST 2006")) + "  " +
		subtleStyle.Render(hostLine(s.Host))

	cpuCard := card("CPU",
		fmt.Sprintf("%s\nuser %5.1f%%  sys %5.1f%%  cores %d\n%s",
			gaugeBar(s.CPU.Overall, 28),
			s.CPU.User, s.CPU.System, len(s.CPU.Cores),
			sparkline(s.History.CPU, 100, 40)))

	memCard := card("Memory",
		fmt.Sprintf("%s\n%.1f/%.1f GiB  free %.1f GiB\n%s",
			gaugeBar(s.Memory.UsedPercent, 28),
			bytesToGiB(s.Memory.UsedBytes),
			bytesToGiB(s.Memory.TotalBytes),
			bytesToGiB(s.Memory.AvailableBytes),
			sparkline(s.History.Memory, 100, 40)))

	columns := []string{cpuCard, memCard}
	if g, ok := s.ActiveGPU(); ok {
		columns = append(columns, gpuCard(s, g))
	}

	netCard := card("Network",
		fmt.Sprintf("↑ %6.2f MB/s  ↓ %6.2f MB/s\n%s\n%s",
			s.Network.Up, s.Network.Down,
			sparkline(s.History.NetDown, history.Series(s.History.NetDown).Max(1), 32),
			interfaceRows(s.Network.Top)))

	diskCard := card("Disk",
		fmt.Sprintf("R %6.2f MB/s  W %6.2f MB/s\nIOPS r %.0f  w %.0f\n%s",
			s.Disk.ReadMBps, s.Disk.WriteMBps, s.Disk.ReadIOPS, s.Disk.WriteIOPS,
			sparkline(s.History.DiskRead, history.Series(s.History.DiskRead).Max(1), 32)))

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, columns...)
	line2 := lipgloss.JoinHorizontal(lipgloss.Top, netCard, diskCard, card("Volumes", volumeRows(s.Volumes, 6)))

	procTable := card(fmt.Sprintf("Processes (%d, by %s)", len(s.Processes), m.sortKey),
		renderTable(m.visible(), m.cursor))

	footer := subtleStyle.Render("q quit · j/k move · s sort · g next GPU · t terminate · K kill")
	if m.status != "" {
		footer = m.status + "  " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, line1, line2, procTable, footer)
}

func gpuCard(s model.Snapshot, g model.GPU) string {
	title := "GPU"
	if len(s.GPUs) > 1 {
		title = fmt.Sprintf("GPU %d/%d", s.SelectedGPU+1, len(s.GPUs))
	}
	var series []float64
	if s.SelectedGPU < len(s.GPUHistory) {
		series = s.GPUHistory[s.SelectedGPU]
	}
	return card(title,
		fmt.Sprintf("%s\n%s%s  %s%.0f°C  mem %.0f/%.0f MiB (%.0f%%)\n%s",
			truncate(g.Model, 36),
			estMark(g.UtilizationEstimated), gaugeBar(g.Utilization, 16),
			estMark(g.TemperatureEstimated), g.Temperature,
			g.MemoryUsedBytes/(1024*1024), g.MemoryTotalBytes/(1024*1024), g.MemoryPercent(),
			sparkline(series, 100, 40)))
}

// estMark prefixes estimated readings with "~".
func estMark(estimated bool) string {
	if estimated {
		return "~"
	}
	return ""
}

func hostLine(h model.Host) string {
	parts := make([]string, 0, 4)
	if h.CPUBrand != "" {
		parts = append(parts, h.CPUBrand)
	}
	if h.UptimeSeconds > 0 {
		parts = append(parts, "up "+(time.Duration(h.UptimeSeconds)*time.Second).String())
	}
	if h.CPUTemperature > 0 {
		parts = append(parts, fmt.Sprintf("%.0f°C", h.CPUTemperature))
	}
	if h.HasBattery {
		parts = append(parts, fmt.Sprintf("bat %.0f%%", h.BatteryPercent))
	}
	return strings.Join(parts, " · ")
}

// Helpers
func gaugeBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

// sparkline renders the newest width samples scaled against top.
func sparkline(series []float64, top float64, width int) string {
	if len(series) > width {
		series = series[len(series)-width:]
	}
	if top <= 0 {
		top = 1
	}
	out := make([]rune, len(series))
	last := len(sparkTicks) - 1
	for i, v := range series {
		idx := int(v / top * float64(last))
		if idx < 0 {
			idx = 0
		}
		if idx > last {
			idx = last
		}
		out[i] = sparkTicks[idx]
	}
	return string(out)
}

func card(title, body string) string {
	titleStr := labelStyle.Render(title)
	content := titleStr + "\n" + body
	return cardStyle.Render(content)
}

func interfaceRows(top []model.Interface) string {
	if len(top) == 0 {
		return subtleStyle.Render("no traffic")
	}
	rows := make([]string, 0, len(top))
	for _, iface := range top {
		rows = append(rows, fmt.Sprintf("%-22s %7.2f MB/s", truncate(iface.Label, 22), iface.Total))
	}
	return strings.Join(rows, "\n")
}

func volumeRows(vols []model.Volume, limit int) string {
	if len(vols) == 0 {
		return subtleStyle.Render("no volumes")
	}
	n := min(limit, len(vols))
	rows := make([]string, 0, n)
	for _, v := range vols[:n] {
		rows = append(rows, fmt.Sprintf("%-16s %s %6.1f GiB free",
			truncate(v.Name, 16), gaugeBar(v.UsagePercent, 10), bytesToGiB(v.AvailableBytes)))
	}
	return strings.Join(rows, "\n")
}

func renderTable(rows []model.Process, cursor int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-7s %-10s %6s %9s %6s %-9s\n", "name", "pid", "user", "cpu%", "mem MB", "mem%", "status")
	for i, r := range rows {
		line := fmt.Sprintf("%-24s %-7d %-10s %6.1f %9.1f %6.1f %-9s",
			truncate(r.Name, 24), r.PID, truncate(r.User, 10), r.CPUPercent, r.MemoryMB, r.MemoryPercent, r.Status)
		if i == cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// sortProcesses returns a sorted copy; ties keep source order.
func sortProcesses(procs []model.Process, key string) []model.Process {
	out := make([]model.Process, len(procs))
	copy(out, procs)
	var less func(a, b model.Process) bool
	switch key {
	case "mem":
		less = func(a, b model.Process) bool { return a.MemoryMB > b.MemoryMB }
	case "pid":
		less = func(a, b model.Process) bool { return a.PID < b.PID }
	case "name":
		less = func(a, b model.Process) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	default:
		less = func(a, b model.Process) bool { return a.CPUPercent > b.CPUPercent }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func nextSort(key string) string {
	for i, k := range sortOrder {
		if k == key {
			return sortOrder[(i+1)%len(sortOrder)]
		}
	}
	return sortOrder[0]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func bytesToGiB(b float64) float64 { return b / (1024 * 1024 * 1024) }

// RunTUI starts the Bubble Tea program on top of a running scheduler.
func RunTUI(sched *scheduler.Scheduler, cfg config.Config) error {
	prog := tea.NewProgram(New(sched, cfg), tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
