package main

import (
	"context"
	"flag"
	"log"

	"github.com/robotalks/strata.go/pkg/config"
	"github.com/robotalks/strata.go/pkg/forward"
	"github.com/robotalks/strata.go/pkg/framework"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()
	conf := config.Default()
	if err := conf.Resolve(flag.CommandLine); err != nil {
		log.Fatalln(err)
	}

	runner := framework.NewRunner().HandleSignals()
	svc := forward.New(conf)
	if err := svc.Start(runner.Context, runner); err != nil {
		log.Fatalln(err)
	}
	runner.Go(framework.NamedRun("http", framework.RunFunc(func(ctx context.Context) error {
		return forward.Serve(ctx, conf.Listen, svc.Handler(ctx))
	})))
	err := runner.Wait()
	if cerr := svc.Close(); cerr != nil {
		log.Println(cerr)
	}
	if err != nil {
		log.Fatalln(err)
	}
}
