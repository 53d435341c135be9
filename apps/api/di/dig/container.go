package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/outcomes/apps/api/echo"
	"github.com/trezcool/outcomes/core"
	"github.com/trezcool/outcomes/core/attainment"
	emailsvc "github.com/trezcool/outcomes/services/email"
	logsvc "github.com/trezcool/outcomes/services/logger"
	"github.com/trezcool/outcomes/storage"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Store is the opened attainment store with its close func.
type Store struct {
	storage.Store
	Close func() error
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) Store {
	s, closeFn, err := storage.Open(conf, true /* set up */)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up %s database: %v", conf.Database.Engine, err), err)
	}
	return Store{Store: s, Close: closeFn}
}

func newRepository(s Store) attainment.Repository {
	return s.Store
}

func newAttainmentService(conf *core.Config, repo attainment.Repository, logger core.Logger, mailSvc core.EmailService) *attainment.Service {
	return attainment.NewServiceFromConfig(conf, repo, logger, mailSvc)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newRepository))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(newAttainmentService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
