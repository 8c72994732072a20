package main

import "github.com/suPer8Hu/voice-audit/internal/cli"

func main() {
	cli.Execute()
}
