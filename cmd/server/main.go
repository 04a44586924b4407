package main

import (
	"github.com/eleven-am/label-scan/internal/bootstrap"
)

// @title Label Scan API
// @version 1.0.0
// @description Halal label scanning: camera capture, shot management, classification and scan history

// @BasePath /v1

func main() {
	bootstrap.Run()
}
