// Command coursestack runs the knowledge-sharing API server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/coursestack/coursestack/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		fmt.Fprintln(os.Stderr, "coursestack:", err)
		os.Exit(1)
	}
}
