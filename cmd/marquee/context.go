package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmcdole/marquee/internal/config"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/log"
	"github.com/mmcdole/marquee/internal/migrate"
	"github.com/mmcdole/marquee/internal/rescue"
	"github.com/mmcdole/marquee/internal/startup"
	"github.com/mmcdole/marquee/internal/store"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

type commandContext struct {
	configFlag *string

	once     sync.Once
	err      error
	config   *config.Config
	logger   *slog.Logger
	reporter domain.Reporter
	driver   *store.Driver
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensure loads configuration and builds the logger and store driver once.
func (c *commandContext) ensure() error {
	c.once.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.LoadConfigFrom(path)
		if err != nil {
			c.err = fmt.Errorf("failed to load config: %w", err)
			return
		}
		c.config = cfg
		styles.ApplyTheme(cfg.UI.Theme)

		logger, err := log.SetupLogger(&cfg.Logging)
		if err != nil {
			// Fall back to null logger if file logging fails
			logger = log.NullLogger()
		}
		slog.SetDefault(logger)
		c.logger = logger
		c.reporter = log.NewReporter(logger)

		dir, err := log.ExpandHome(cfg.Storage.Dir)
		if err != nil {
			c.err = err
			return
		}
		c.driver, c.err = store.NewDriver(dir, cfg.Storage.OpenTimeout, logger)
		if c.err == nil {
			logger.Debug("using store directory", "dir", c.driver.Dir())
		}
	})
	return c.err
}

func (c *commandContext) quarantine() *rescue.Quarantine {
	return rescue.NewQuarantine(c.driver, c.driver, c.config.Storage.Quarantine, c.reporter)
}

func (c *commandContext) rescuer() *rescue.Rescuer {
	return rescue.NewRescuer(c.driver, rescue.NewBackupReader(c.driver, c.reporter), c.quarantine(), c.reporter)
}

func (c *commandContext) restorer() *rescue.Restorer {
	return rescue.NewRestorer(c.quarantine(), c.reporter)
}

func (c *commandContext) migrator() *migrate.Migrator {
	return migrate.New(c.driver, c.config.Storage.Primary, c.reporter)
}

func (c *commandContext) orchestrator(obs startup.Observer) *startup.Orchestrator {
	return startup.New(startup.Deps{
		Opener:   c.driver,
		Name:     c.config.Storage.Primary,
		Rescuer:  c.rescuer(),
		Restorer: c.restorer(),
		Migrator: c.migrator(),
		Reporter: c.reporter,
		Observer: obs,
		Logger:   c.logger,
	})
}
