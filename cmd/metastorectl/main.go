package main

import (
	"github.com/metastack/metastore/internal/cli"
	"github.com/metastack/metastore/internal/common/logtrace"
)

func init() {
	logtrace.InitConsoleLogger()
}

func main() {
	cli.Execute()
}
