package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/startup"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

var labels = map[startup.State]string{
	startup.Opening:      "Opening library",
	startup.Open:         "Library opened",
	startup.OpenFailed:   "Library failed to open",
	startup.Rescuing:     "Backing up and resetting the store",
	startup.Rescued:      "Backup saved, store reset",
	startup.RescueFailed: "Store could not be repaired",
	startup.Reopening:    "Recreating the store and restoring",
	startup.Reload:       "Restarting",
	startup.RestoreCheck: "Checking for a pending restore",
	startup.Migrating:    "Normalizing ids",
	startup.Ready:        "Ready",
}

// Label is the human description of a startup state.
func Label(s startup.State) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return s.String()
}

// Summary renders the outcome of startup as a bordered panel.
func Summary(s *startup.Session, err error) string {
	var lines []string

	switch {
	case errors.Is(err, startup.ErrReloadLimit):
		lines = append(lines, styles.WarnStyle.Render("store was rescued but did not settle; run again"))
	case err != nil:
		lines = append(lines, styles.ErrorStyle.Render("startup stopped: "+err.Error()))
	case s == nil:
		lines = append(lines, styles.ErrorStyle.Render("startup did not finish"))
	case s.State.Degraded():
		lines = append(lines, styles.ErrorStyle.Render(styles.FailedChar+" store could not be repaired; continuing without a healthy library"))
	case s.State == startup.Ready:
		lines = append(lines, styles.SuccessStyle.Render(styles.DoneChar+" library ready"))
	default:
		lines = append(lines, styles.DimStyle.Render("finished in state "+s.State.String()))
	}

	if s != nil {
		if r, ok := s.Restored(); ok {
			line := fmt.Sprintf("restored %d titles and %d history entries",
				r.Restored[domain.CollectionLibrary], r.Restored[domain.CollectionHistory])
			if r.RescueID != "" {
				line += styles.DimStyle.Render(" (rescue ") + styles.AccentStyle.Render(r.RescueID) + styles.DimStyle.Render(")")
			}
			lines = append(lines, line)
			for _, coll := range domain.RescueLabels {
				if ferr, ok := r.Failed[coll]; ok {
					lines = append(lines, styles.WarnStyle.Render(fmt.Sprintf("could not restore %s: %v", coll, ferr)))
				}
			}
		}
		if s.Migration.Changed() {
			for _, coll := range []string{domain.CollectionLibrary, domain.CollectionHistory} {
				c := s.Migration[coll]
				if c.Fixed+c.Dropped+c.Failed == 0 {
					continue
				}
				lines = append(lines, fmt.Sprintf("%s ids: %d fixed, %d duplicates dropped, %d failed",
					coll, c.Fixed, c.Dropped, c.Failed))
			}
		}
	}

	return styles.PanelStyle.Render(strings.Join(lines, "\n"))
}
