// Rebuilds the pickup-location index from the data directory and prints the
// summary. Run it after updating the pickup data files; the server picks the
// new data up on its own refresh endpoint, this tool is for CI checks and
// ad-hoc verification.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/joshua0006/pineapple-tours--1--sub006/config"
	"github.com/joshua0006/pineapple-tours--1--sub006/pickups"
)

func main() {
	dataDir := flag.String("data-dir", "", "Pickup data directory (default: PICKUP_DATA_DIR)")
	flag.Parse()

	config.LoadEnv()
	dir := strings.TrimSpace(*dataDir)
	if dir == "" {
		dir = config.PickupDataDir()
	}

	logger := logrus.New()
	index := pickups.NewIndex(dir, logger)
	summary, err := index.RefreshIndex()
	if err != nil {
		fmt.Fprintln(os.Stderr, "rebuild failed:", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if summary.TotalProducts == 0 {
		fmt.Fprintln(os.Stderr, "warning: no products indexed; check --data-dir")
		os.Exit(2)
	}
}
