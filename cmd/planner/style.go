package main

import (
	"github.com/fatih/color"
)

var (
	bold       = color.New(color.Bold).SprintFunc()
	dim        = color.New(color.Faint).SprintFunc()
	cyan       = color.New(color.FgCyan).SprintFunc()
	green      = color.New(color.FgGreen).SprintFunc()
	red        = color.New(color.FgRed).SprintFunc()
	yellow     = color.New(color.FgYellow).SprintFunc()
	boldCyan   = color.New(color.Bold, color.FgCyan).SprintFunc()
	boldRed    = color.New(color.Bold, color.FgRed).SprintFunc()
	boldYellow = color.New(color.Bold, color.FgYellow).SprintFunc()
)

// feasibility renders the policy verdict of a schedule.
func feasibility(ok bool) string {
	if ok {
		return green("feasible")
	}
	return red("over policy")
}

// selectionTag colours a MANDATORY/OPTIONAL marker.
func selectionTag(selection string) string {
	switch selection {
	case "MANDATORY":
		return cyan("M")
	case "OPTIONAL":
		return yellow("O")
	default:
		return dim("-")
	}
}
