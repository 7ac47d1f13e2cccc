package main

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/spinbot/pkg/framework"
	"github.com/robotalks/spinbot/pkg/node"
)

func init() {
	node.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := node.MustLoad()
	runner := framework.NewRunnerWith(context.Background()).HandleSignals()
	err := runner.Go(framework.NamedRun("spinbot", framework.RunnableFunc(func(ctx context.Context) error {
		return node.Start(ctx, conf)
	}))).Wait()
	if err != nil {
		glog.Exitf("spinbot: %v", err)
	}
}
