package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/kacperjurak/goarraycore/internal/processing"
	"github.com/kacperjurak/goarraycore/pkg/config"
)

func main() {
	var theta config.ArrayFlags

	file := flag.String("f", "scenario.yaml", "Scenario file (YAML)")
	flag.Var(&theta, "theta", "Theta grid override in degrees (repeatable)")
	imgSave := flag.Bool("imgsave", false, "Save a PNG plot per array")
	imgPath := flag.String("imgpath", ".", "Directory for saved plots")
	quiet := flag.Bool("q", false, "Quiet mode")
	flag.Parse()

	if *quiet {
		log.SetLevel(log.WarnLevel)
	}

	sc, err := LoadScenario(*file)
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to load scenario")
	}

	cfg := config.DefaultConfig()
	cfg.Quiet = *quiet
	cfg.Plots = *imgSave

	r := &runner{
		processor: processing.NewArrayProcessor(cfg, nil),
		theta:     theta,
	}
	if *imgSave {
		if err := os.MkdirAll(*imgPath, 0755); err != nil {
			log.WithError(err).Fatal("❌ Failed to create plot directory")
		}
		r.imgPath = *imgPath
	}

	rows := r.Run(context.Background(), sc)
	fmt.Println(RenderTable(rows))

	for _, row := range rows {
		if row.Err != nil {
			os.Exit(1)
		}
	}
}
