// Package driftconsole is a read-only terminal view over drift incidents.
package driftconsole

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	domaindrift "driftline/internal/domain/drift"
	usecasedrift "driftline/internal/usecase/drift"
	"driftline/internal/ports"
)

const maxShownTransitions = 6

type Options struct {
	TenantID        string
	EnvironmentID   string
	StatusFilter    string
	RefreshInterval time.Duration
}

type incidentModel struct {
	ctx             context.Context
	service         *usecasedrift.Service
	tenantID        string
	environmentID   string
	statusFilter    string
	refreshInterval time.Duration

	incidents     []usecasedrift.IncidentView
	selectedIndex int
	transitions   []ports.IncidentTransition
	status        string
}

type incidentsLoadedMsg struct {
	items []usecasedrift.IncidentView
	err   error
}

type transitionsLoadedMsg struct {
	incidentID string
	items      []ports.IncidentTransition
	err        error
}

type tickMsg struct{}

func NewIncidentModel(ctx context.Context, service *usecasedrift.Service, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &incidentModel{
		ctx:             ctx,
		service:         service,
		tenantID:        options.TenantID,
		environmentID:   strings.TrimSpace(options.EnvironmentID),
		statusFilter:    strings.TrimSpace(strings.ToLower(options.StatusFilter)),
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *incidentModel) Init() tea.Cmd {
	return tea.Batch(m.loadIncidentsCmd(), m.tickCmd())
}

func (m *incidentModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadIncidentsCmd(), m.tickCmd())

	case incidentsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.incidents = msg.items
		if len(m.incidents) == 0 {
			m.selectedIndex = 0
			m.transitions = nil
			m.status = "no incidents"
			return m, nil
		}
		if m.selectedIndex >= len(m.incidents) {
			m.selectedIndex = len(m.incidents) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d incidents", len(m.incidents))
		return m, m.loadTransitionsCmd()

	case transitionsLoadedMsg:
		if !m.isSelected(msg.incidentID) {
			return m, nil
		}
		if msg.err != nil {
			m.transitions = nil
			m.status = "history load failed: " + msg.err.Error()
			return m, nil
		}
		m.transitions = msg.items
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadIncidentsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadTransitionsCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.incidents)-1 {
				m.selectedIndex++
				return m, m.loadTransitionsCmd()
			}
			return m, nil
		}
	}
	return m, nil
}

func (m *incidentModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	alertStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Drift Incidents"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"tenant=%s env=%s status=%s refresh=%s",
		m.tenantID,
		firstNonEmpty(m.environmentID, "all"),
		firstNonEmpty(m.statusFilter, "open"),
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Incidents"))
	builder.WriteString("\n")
	if len(m.incidents) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n")
	}
	for index, incident := range m.incidents {
		line := fmt.Sprintf("%-10s %-12s %-8s %-10s %s",
			shortID(incident.ID),
			incident.Status,
			incident.Severity,
			formatTTL(incident.ExpiresAt, incident.Expired, time.Now().UTC()),
			incident.EnvironmentID,
		)
		switch {
		case index == m.selectedIndex:
			builder.WriteString(selectedStyle.Render("> " + line))
		case incident.Expired:
			builder.WriteString(alertStyle.Render("  " + line))
		default:
			builder.WriteString("  " + line)
		}
		builder.WriteString("\n")
	}

	if len(m.incidents) > 0 && m.selectedIndex < len(m.incidents) {
		selected := m.incidents[m.selectedIndex]
		builder.WriteString("\n")
		builder.WriteString(sectionStyle.Render("Detail"))
		builder.WriteString("\n")
		builder.WriteString(fmt.Sprintf("id=%s owner=%s ticket=%s resolution=%s\n",
			selected.ID,
			firstNonEmpty(selected.OwnerUserID, "-"),
			firstNonEmpty(selected.TicketRef, "-"),
			firstNonEmpty(selected.ResolutionType, "-"),
		))
		builder.WriteString(fmt.Sprintf("affected=%s\n", strings.Join(selected.AffectedWorkflows, ", ")))

		builder.WriteString("\n")
		builder.WriteString(sectionStyle.Render("History"))
		builder.WriteString("\n")
		if len(m.transitions) == 0 {
			builder.WriteString(dimStyle.Render("- empty"))
			builder.WriteString("\n")
		}
		start := 0
		if len(m.transitions) > maxShownTransitions {
			start = len(m.transitions) - maxShownTransitions
		}
		for _, transition := range m.transitions[start:] {
			marker := ""
			if transition.Override {
				marker = " [override]"
			}
			builder.WriteString(dimStyle.Render(fmt.Sprintf("- %s %s -> %s by %s%s",
				transition.CreatedAt.Format("01-02 15:04"),
				firstNonEmpty(string(transition.FromStatus), "(new)"),
				transition.ToStatus,
				firstNonEmpty(transition.Actor, "-"),
				marker,
			)))
			builder.WriteString("\n")
		}
	}

	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render("keys: up/down select  g refresh  q quit"))
	builder.WriteString("\n")
	builder.WriteString(m.status)
	return builder.String()
}

func (m *incidentModel) loadIncidentsCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.ListIncidents(m.ctx, m.tenantID, ports.IncidentFilter{EnvironmentID: m.environmentID})
		if err != nil {
			return incidentsLoadedMsg{err: err}
		}
		return incidentsLoadedMsg{items: sortIncidents(filterIncidents(items, m.statusFilter))}
	}
}

func (m *incidentModel) loadTransitionsCmd() tea.Cmd {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.incidents) {
		return nil
	}
	incidentID := m.incidents[m.selectedIndex].ID
	return func() tea.Msg {
		items, err := m.service.Transitions(m.ctx, m.tenantID, incidentID)
		return transitionsLoadedMsg{incidentID: incidentID, items: items, err: err}
	}
}

func (m *incidentModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *incidentModel) isSelected(incidentID string) bool {
	return m.selectedIndex >= 0 &&
		m.selectedIndex < len(m.incidents) &&
		m.incidents[m.selectedIndex].ID == incidentID
}

// filterIncidents keeps incidents matching the status filter; the default
// (empty) filter shows open incidents only.
func filterIncidents(items []usecasedrift.IncidentView, statusFilter string) []usecasedrift.IncidentView {
	filtered := make([]usecasedrift.IncidentView, 0, len(items))
	for _, item := range items {
		switch statusFilter {
		case "", "open":
			if item.Status == domaindrift.IncidentClosed {
				continue
			}
		case "all":
		default:
			if string(item.Status) != statusFilter {
				continue
			}
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// sortIncidents orders expired first, then severity, then recency.
func sortIncidents(items []usecasedrift.IncidentView) []usecasedrift.IncidentView {
	sorted := make([]usecasedrift.IncidentView, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Expired != sorted[j].Expired {
			return sorted[i].Expired
		}
		if ri, rj := severityRank(sorted[i].Severity), severityRank(sorted[j].Severity); ri != rj {
			return ri < rj
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted
}

func severityRank(severity string) int {
	switch severity {
	case "critical":
		return 0
	case "high":
		return 1
	case "medium":
		return 2
	default:
		return 3
	}
}

// formatTTL renders the countdown column: "-" without a TTL, "EXPIRED" past
// it, otherwise the remaining time.
func formatTTL(expiresAt *time.Time, expired bool, now time.Time) string {
	if expiresAt == nil {
		return "-"
	}
	if expired {
		return "EXPIRED"
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return "-"
	}
	if remaining >= 24*time.Hour {
		return fmt.Sprintf("%dd%dh", int(remaining.Hours())/24, int(remaining.Hours())%24)
	}
	if remaining >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(remaining.Hours()), int(remaining.Minutes())%60)
	}
	return fmt.Sprintf("%dm", int(remaining.Minutes()))
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func firstNonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
