// Command motiondb builds, inspects and queries motion databases.
//
// Usage:
//
//	motiondb build -f build.yaml
//	motiondb inspect hero.mdb
//	motiondb inspect s3://assets/characters/hero.mdb --debug yaml
//	motiondb query hero.mdb --segment 0 --frame 42 -k 5
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
