// Package printing defines the badge-printing boundary. The actual printer
// subsystem is an external collaborator; this core only asks it to print and
// records whether it did.
package printing

import (
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-checkin-station/internal/domain"
)

// PrintManager produces an attendee badge for a successful scan.
type PrintManager interface {
	// PrintLabel renders and prints a badge, reporting whether printing
	// actually happened.
	PrintLabel(operator domain.User, ticket domain.Ticket, cfg *domain.LabelConfiguration) bool
}

// LogPrinter is a PrintManager that only logs the print request. Used when no
// physical printer is attached (and in tests).
type LogPrinter struct {
	Log zerolog.Logger

	titleCaser cases.Caser
}

var _ PrintManager = (*LogPrinter)(nil)

// NewLogPrinter returns a LogPrinter writing to the given logger.
func NewLogPrinter(log zerolog.Logger) *LogPrinter {
	return &LogPrinter{
		Log:        log.With().Str("component", "printer").Logger(),
		titleCaser: cases.Title(language.English),
	}
}

// PrintLabel implements PrintManager. Attendee names arrive in whatever
// casing the organizer typed; badges get title case.
func (p *LogPrinter) PrintLabel(operator domain.User, ticket domain.Ticket, cfg *domain.LabelConfiguration) bool {
	name := p.titleCaser.String(strings.ToLower(ticket.FullName()))
	p.Log.Info().
		Str("operator", operator.Username).
		Str("ticket", ticket.UUID).
		Str("attendee", name).
		Bool("layout", cfg != nil && cfg.Layout != nil).
		Msg("print label")
	return true
}
