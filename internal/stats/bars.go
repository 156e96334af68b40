package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

type ansiColor struct {
	name string
	code string
}

const (
	minBarWidth         = 10
	maxBarWidth         = 50
	barFull             = '█'
	barEmpty            = '·'
	barSeparator        = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var (
	colorGood = ansiColor{name: "green", code: "\x1b[32m"}
	colorFair = ansiColor{name: "yellow", code: "\x1b[33m"}
	colorPoor = ansiColor{name: "red", code: "\x1b[31m"}
)

// Bar is one labeled accuracy value in percent.
type Bar struct {
	Label   string
	Percent int
}

// AccuracyBar renders percent as a fixed-width bar.
func AccuracyBar(percent, width int) string {
	if width <= 0 {
		return ""
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(math.Round(float64(percent) / 100 * float64(width)))
	return strings.Repeat(string(barFull), filled) + strings.Repeat(string(barEmpty), width-filled)
}

// BarWidthFor returns the bar width fitting totalWidth next to labels of labelWidth.
func BarWidthFor(totalWidth, labelWidth int) int {
	if totalWidth <= 0 {
		totalWidth = terminalWidth()
	}
	width := totalWidth - labelWidth - utf8.RuneCountInString(barSeparator) - len(" 100%")
	if width < minBarWidth {
		width = minBarWidth
	}
	if width > maxBarWidth {
		width = maxBarWidth
	}
	return width
}

// PlotBars renders labeled accuracy bars, colored by accuracy band when
// writing to a terminal or when forceColor is set.
func PlotBars(w io.Writer, title string, bars []Bar, totalWidth int, forceColor bool) error {
	if len(bars) == 0 {
		return nil
	}
	labelWidth := 0
	for _, b := range bars {
		if n := displayWidth(b.Label); n > labelWidth {
			labelWidth = n
		}
	}
	width := BarWidthFor(totalWidth, labelWidth)
	useColor := shouldUseColor(w, forceColor)

	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	for _, b := range bars {
		bar := AccuracyBar(b.Percent, width)
		if useColor {
			bar = bandColor(b.Percent).code + bar + colorReset
		}
		line := padCell(b.Label, labelWidth, false) + barSeparator + bar + fmt.Sprintf(" %3d%%", b.Percent)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func bandColor(percent int) ansiColor {
	switch {
	case percent >= 80:
		return colorGood
	case percent >= 50:
		return colorFair
	default:
		return colorPoor
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
