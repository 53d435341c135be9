package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/trezcool/outcomes/core"
	"github.com/trezcool/outcomes/core/attainment"
	emailsvc "github.com/trezcool/outcomes/services/email"
	logsvc "github.com/trezcool/outcomes/services/logger"
	"github.com/trezcool/outcomes/storage"
	"github.com/trezcool/outcomes/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	defer logger.Close()

	color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	cli := commandLine{conf: conf, out: os.Stdout}

	// migrations run on the bare postgres connection, everything else on the configured store
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer db.Close()
		cli.db = db.DB
	} else {
		store, closeStore, err := storage.Open(conf, false)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening %s store: %v", conf.Database.Engine, err), err)
		}
		defer func() { _ = closeStore() }()

		core.ParseEmailTemplates(conf, logger)
		cli.store = store
		cli.mailer = emailsvc.NewService(conf, logger)
		cli.svc = attainment.NewServiceFromConfig(conf, store, logger, cli.mailer)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			color.New(color.FgRed).Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		logger.Close()
		os.Exit(1)
	}
}
