package display

import (
	"github.com/fatih/color"
)

var (
	gold      = color.New(color.FgYellow)
	green     = color.New(color.FgGreen)
	grey      = color.New(color.FgHiBlack)
	lightBlue = color.New(color.FgHiBlue)
	red       = color.New(color.FgRed)
	bold      = color.New(color.Bold)
)

// SetColor forces colour on or off. By default it follows whether stdout is
// a terminal and NO_COLOR.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

func Gold(s string) string { return gold.Sprint(s) }

func Green(s string) string                    { return green.Sprint(s) }
func Greenf(format string, args ...any) string { return green.Sprintf(format, args...) }

func Grey(s string) string                    { return grey.Sprint(s) }
func Greyf(format string, args ...any) string { return grey.Sprintf(format, args...) }

func LightBlue(s string) string                    { return lightBlue.Sprint(s) }
func LightBluef(format string, args ...any) string { return lightBlue.Sprintf(format, args...) }

func Red(s string) string                    { return red.Sprint(s) }
func Redf(format string, args ...any) string { return red.Sprintf(format, args...) }

func Bold(s string) string { return bold.Sprint(s) }
