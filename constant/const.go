package constant

import (
	_ "embed"
	"fmt"
	"strings"
	"time"
)

const AppName = "csndl"

var (
	//go:embed version
	version string
	// Overridden at build time with -ldflags "-X github.com/xeptore/csndl/constant.compileTime=...".
	compileTime = "2025-03-01T00:00:00Z"

	Version     string
	CompileTime time.Time
)

func init() {
	Version = strings.TrimSpace(version)
	t, err := time.Parse(time.RFC3339, compileTime)
	if nil != err {
		panic(fmt.Errorf("could not parse compile time %q. Make sure it is set at build time", compileTime))
	}
	CompileTime = t
}
