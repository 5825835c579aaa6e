package console

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hedgegraph/internal/app"
	"hedgegraph/internal/domain"
)

// Action says what the caller should do with a parsed command line.
type Action int

const (
	ActionNone    Action = iota // blank line
	ActionSubmit                // hand Intent to the session
	ActionSymbols               // list tradable symbols
	ActionHelp
	ActionQuit
)

// Command is one parsed console line.
type Command struct {
	Action Action
	Intent app.Intent
}

const Usage = `commands:
  symbol <SYMBOL>                              load the default window for SYMBOL
  range  <start> <end> <interval> [SYMBOL]     load an explicit window
  export <start> <end> <interval> [SYMBOL]     load a window and export it
  drag   <fromMs> <toMs>                       zoom to a chart selection
  reload                                       restart the current window
  symbols                                      list tradable symbols
  help
  quit
times are RFC 3339, YYYY-MM-DD, YYYY-MM-DDTHH:MM (UTC) or unix milliseconds`

// timeLayouts are tried in order; layouts without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse turns a console line into a Command. It checks only the shape of
// the line; windows and intervals are validated by the session.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{Action: ActionNone}, nil
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "symbol":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: symbol <SYMBOL>")
		}
		return submit(app.SelectSymbol{Symbol: args[0]}), nil

	case "range", "export":
		if len(args) != 3 && len(args) != 4 {
			return Command{}, fmt.Errorf("usage: %s <start> <end> <interval> [SYMBOL]", name)
		}
		start, err := ParseTime(args[0])
		if err != nil {
			return Command{}, fmt.Errorf("start: %w", err)
		}
		end, err := ParseTime(args[1])
		if err != nil {
			return Command{}, fmt.Errorf("end: %w", err)
		}
		interval, err := domain.ParseInterval(args[2])
		if err != nil {
			return Command{}, err
		}
		rng := app.ChooseRange{Start: start, End: end, Interval: interval, Export: name == "export"}
		if len(args) == 4 {
			rng.Symbol = args[3]
		}
		return submit(rng), nil

	case "drag":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("usage: drag <fromMs> <toMs>")
		}
		from, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return Command{}, fmt.Errorf("fromMs: %w", err)
		}
		to, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return Command{}, fmt.Errorf("toMs: %w", err)
		}
		return submit(app.Drag{Bounds: app.Bounds{From: from, To: to}}), nil

	case "reload":
		return submit(app.Reload{}), nil
	case "symbols":
		return Command{Action: ActionSymbols}, nil
	case "help", "?":
		return Command{Action: ActionHelp}, nil
	case "quit", "exit":
		return Command{Action: ActionQuit}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q (try help)", fields[0])
}

func submit(intent app.Intent) Command {
	return Command{Action: ActionSubmit, Intent: intent}
}

// ParseTime accepts unix milliseconds or one of timeLayouts.
func ParseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
