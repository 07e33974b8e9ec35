package main

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// ANSI color codes
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
)

var colorsEnabled = true

func init() {
	// Honor the NO_COLOR convention (https://no-color.org).
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
	}
}

func colorize(color, text string) string {
	if !colorsEnabled {
		return text
	}
	return color + text + ansiReset
}

func colorRed(text string) string    { return colorize(ansiRed, text) }
func colorGreen(text string) string  { return colorize(ansiGreen, text) }
func colorYellow(text string) string { return colorize(ansiYellow, text) }
func colorBlue(text string) string   { return colorize(ansiBlue, text) }
func colorCyan(text string) string   { return colorize(ansiCyan, text) }
func colorBold(text string) string   { return colorize(ansiBold, text) }
func colorDim(text string) string    { return colorize(ansiDim, text) }

// Output helpers
func printSuccess(message string) {
	fmt.Println(colorGreen("✓") + " " + message)
}

func printError(message string) {
	fmt.Fprintln(os.Stderr, colorRed("✗")+" "+message)
}

func printWarning(message string) {
	fmt.Println(colorYellow("⚠") + " " + message)
}

func printInfo(message string) {
	fmt.Println(colorBlue("ℹ") + " " + message)
}

func printHeader(title string) {
	fmt.Println("\n" + colorBold(colorCyan(title)))
	fmt.Println(colorDim("────────────────────────────────────────"))
}

// printTable renders rows in aligned columns. Cells are padded before they
// are colorized; ANSI escapes carry zero display width, so padding a styled
// string with %-*s would skew every column after it.
func printTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, h := range headers {
		fmt.Print(colorBold(pad(h, widths[i])) + "  ")
	}
	fmt.Println()

	for _, w := range widths {
		fmt.Print(strings.Repeat("─", w) + "  ")
	}
	fmt.Println()

	for _, row := range rows {
		for i, cell := range row {
			fmt.Print(pad(cell, widths[i]) + "  ")
		}
		fmt.Println()
	}
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
