// Command splitctl extracts split configurations from workflow exports and
// reconciles them against adjustment requests from the command line.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
