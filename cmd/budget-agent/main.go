// budget-agent tracks personal spending from bank notification emails,
// keeps a spreadsheet ledger and answers questions over Telegram.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
