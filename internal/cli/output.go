package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ANSI escapes for terminal output.
const (
	ansiReset = "\033[0m"
	ansiGreen = "\033[32;1m"
	ansiRed   = "\033[31;1m"
	ansiCyan  = "\033[36m"
	ansiBold  = "\033[37;1m"
)

func printSuccess(format string, a ...interface{}) {
	fmt.Printf(ansiGreen+"✓ "+format+ansiReset+"\n", a...)
}

func printError(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, ansiRed+"✗ "+format+ansiReset+"\n", a...)
}

func printInfo(format string, a ...interface{}) {
	fmt.Printf(ansiCyan+format+ansiReset+"\n", a...)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) addRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render() {
	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, header := range t.headers {
		fmt.Printf(ansiBold+"%-*s"+ansiReset+"  ", widths[i], header)
	}
	fmt.Println()

	for i := range t.headers {
		fmt.Print(strings.Repeat("-", widths[i]) + "  ")
	}
	fmt.Println()

	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Printf("%-*s  ", widths[i], cell)
		}
		fmt.Println()
	}
}
