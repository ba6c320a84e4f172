package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/snapshot"
)

const (
	columnWidthID     = 10
	columnWidthStatus = 13
	columnWidthSLA    = 16
)

var (
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	dangerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func statusColor(status domain.TicketStatus) lipgloss.Color {
	switch status {
	case domain.TicketStatusNew:
		return lipgloss.Color("12")
	case domain.TicketStatusInProgress:
		return lipgloss.Color("10")
	case domain.TicketStatusBlocked:
		return lipgloss.Color("11")
	default:
		return lipgloss.Color("8")
	}
}

// board holds the latest snapshot and one countdown per visible ticket. Each
// snapshot replaces the whole board; countdowns of the previous snapshot are
// stopped and their late ticks ignored.
type board struct {
	out    io.Writer
	format string
	tick   time.Duration
	now    func() time.Time

	mu         sync.Mutex
	generation uint64
	snap       *snapshot.Snapshot
	remaining  map[string]int64
	countdowns []*snapshot.Countdown
}

func newBoard(out io.Writer, format string, tick time.Duration, now func() time.Time) *board {
	if now == nil {
		now = time.Now
	}
	return &board{out: out, format: format, tick: tick, now: now, remaining: map[string]int64{}}
}

// Update installs snap and restarts the countdowns.
func (b *board) Update(snap *snapshot.Snapshot) {
	b.mu.Lock()
	for _, c := range b.countdowns {
		c.Stop()
	}
	b.generation++
	gen := b.generation
	b.snap = snap
	b.remaining = make(map[string]int64, len(snap.Tickets))
	b.countdowns = make([]*snapshot.Countdown, 0, len(snap.Tickets))
	for range snap.Tickets {
		b.countdowns = append(b.countdowns, snapshot.NewCountdown(b.tick, b.now))
	}
	countdowns := b.countdowns
	b.mu.Unlock()

	for i, view := range snap.Tickets {
		id := view.Ticket.ID
		countdowns[i].Start(view, snap.ReceivedAt, func(remaining int64, applicable bool) {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.generation != gen || !applicable {
				return
			}
			b.remaining[id] = remaining
		})
	}
}

// Stop halts every countdown.
func (b *board) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.countdowns {
		c.Stop()
	}
}

type boardRow struct {
	ID               string                `json:"id"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	Title            string                `json:"title"`
	RoomID           *string               `json:"room_id,omitempty"`
	Version          int64                 `json:"version"`
	RemainingSeconds *int64                `json:"remaining_seconds"`
	Paused           bool                  `json:"paused"`
	Breached         bool                  `json:"breached"`
	Exempted         bool                  `json:"exempted"`
}

func (b *board) rows() (*snapshot.Snapshot, []boardRow) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap == nil {
		return nil, nil
	}
	rows := make([]boardRow, 0, len(b.snap.Tickets))
	for _, v := range b.snap.Tickets {
		row := boardRow{
			ID:       v.Ticket.ID,
			Status:   v.Ticket.Status,
			Priority: v.Ticket.Priority,
			Title:    v.Ticket.Title,
			RoomID:   v.Ticket.RoomID,
			Version:  v.Ticket.Version,
			Paused:   v.SLAPaused,
			Breached: v.SLABreached,
			Exempted: v.SLAExempted,
		}
		if remaining, ok := b.remaining[v.Ticket.ID]; ok {
			row.RemainingSeconds = &remaining
		}
		rows = append(rows, row)
	}
	return b.snap, rows
}

// Render writes the board once.
func (b *board) Render() error {
	snap, rows := b.rows()
	if snap == nil {
		return nil
	}
	if b.format == "json" {
		return json.NewEncoder(b.out).Encode(map[string]any{
			"actor_id":    snap.ActorID,
			"server_time": snap.ServerTime,
			"tickets":     rows,
		})
	}

	header := fmt.Sprintf("%s  %d tickets  server %s", snap.ActorID, len(rows), snap.ServerTime.Format(time.TimeOnly))
	if _, err := fmt.Fprintln(b.out, faintStyle.Render(header)); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(b.out, renderRow(row)); err != nil {
			return err
		}
	}
	return nil
}

func renderRow(row boardRow) string {
	id := row.ID
	if len(id) > columnWidthID-2 {
		id = id[:columnWidthID-2]
	}
	room := ""
	if row.RoomID != nil {
		room = "#" + *row.RoomID + " "
	}
	return lipgloss.NewStyle().Width(columnWidthID).Render(id) +
		lipgloss.NewStyle().Width(columnWidthStatus).Foreground(statusColor(row.Status)).Render(string(row.Status)) +
		lipgloss.NewStyle().Width(columnWidthSLA).Render(slaLabel(row)) +
		room + row.Title
}

func slaLabel(row boardRow) string {
	switch {
	case row.Exempted:
		return faintStyle.Render("exempt")
	case row.Breached:
		return dangerStyle.Render("BREACHED")
	case row.RemainingSeconds == nil:
		return faintStyle.Render("-")
	case row.Paused:
		return warnStyle.Render("paused " + formatRemaining(*row.RemainingSeconds))
	case *row.RemainingSeconds == 0:
		return dangerStyle.Render("due")
	default:
		return formatRemaining(*row.RemainingSeconds)
	}
}

// formatRemaining renders seconds as m:ss, or h:mm:ss from one hour up.
func formatRemaining(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
