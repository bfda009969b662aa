package main

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"leasepurge/internal/config"
	"leasepurge/internal/directory"
	"leasepurge/internal/metrics"
	"leasepurge/internal/monitor"
	"leasepurge/internal/reconcile"
	"leasepurge/pkg/utils"
)

const (
	configFile = "/etc/leasepurge.ini"
)

var (
	version   = "1.0.0"
	sha1ver   string
	buildTime string
)

// Reads the configuration file and the environment, then applies the
// flags given explicitly on the command line.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.New(c.String("config"))
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"leases-file":        &cfg.LeasesFile,
		"metrics-file":       &cfg.MetricsFile,
		"ldap-uri":           &cfg.LDAPURI,
		"ldap-base":          &cfg.LDAPBase,
		"ldap-filter":        &cfg.LDAPFilter,
		"ldap-attribute":     &cfg.LDAPAttribute,
		"ldap-bind-dn":       &cfg.LDAPBindDN,
		"ldap-bind-password": &cfg.LDAPBindPassword,
		"log-level":          &cfg.LogLevel,
	}
	for name, value := range overrides {
		if c.IsSet(name) {
			*value = c.String(name)
		}
	}
	if c.IsSet("dry-run") {
		cfg.DryRun = c.Bool("dry-run")
	}
	if c.IsSet("no-watch") {
		cfg.WatchChanges = !c.Bool("no-watch")
	}
	return cfg, nil
}

// Removes the leases of the hosts found in the directory.
func runPurge(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := utils.SetupLogging(cfg.LogLevel); err != nil {
		return err
	}
	log.Debugf("leasepurge: Build %s, Time %s", sha1ver, buildTime)

	provider := directory.NewProvider(directory.LDAPDialer{}, cfg.DirectorySettings())

	driver := reconcile.NewDriver(provider)
	driver.DryRun = cfg.DryRun
	if cfg.WatchChanges {
		driver.NewWatcher = func() reconcile.Watcher {
			return monitor.NewGuard()
		}
	}

	summary, err := driver.Run(cfg.LeasesFile)

	if cfg.MetricsFile != "" {
		m := metrics.New()
		if err != nil {
			m.ObserveFailure(time.Now())
		} else {
			m.Observe(summary, time.Now())
		}
		if metricsErr := m.WriteTextfile(cfg.MetricsFile); metricsErr != nil {
			log.WithError(metricsErr).Warn("Cannot write metrics")
		}
	}

	return err
}

// Prepare urfave cli app with all flags defined.
func setupApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, c.App.Version)
	}

	cli.HelpFlag = &cli.BoolFlag{
		Name:    "help",
		Aliases: []string{"h"},
		Usage:   "Show help",
	}

	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "Print the version",
	}

	return &cli.App{
		Name:  "leasepurge",
		Usage: "Remove DHCP leases of hosts registered in LDAP.",
		Description: `The tool reads the hardware addresses of the host entries found in the
   directory and removes the leases with these addresses from the ISC DHCP
   server lease file. The original file is saved with a timestamp suffix
   before it is replaced.`,
		Version:  version,
		HelpName: "leasepurge",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "INI configuration file",
				Aliases: []string{"c"},
				Value:   configFile,
			},
			&cli.StringFlag{
				Name:    "leases-file",
				Usage:   "The DHCP server lease file",
				Aliases: []string{"l"},
			},
			&cli.StringFlag{
				Name:  "ldap-uri",
				Usage: "The LDAP server, e.g. ldap://localhost",
			},
			&cli.StringFlag{
				Name:  "ldap-base",
				Usage: "The search base of the host entries",
			},
			&cli.StringFlag{
				Name:  "ldap-filter",
				Usage: "The search filter of the host entries",
			},
			&cli.StringFlag{
				Name:  "ldap-attribute",
				Usage: "The attribute holding the hardware address",
			},
			&cli.StringFlag{
				Name:  "ldap-bind-dn",
				Usage: "Bind as this DN instead of searching anonymously",
			},
			&cli.StringFlag{
				Name:  "ldap-bind-password",
				Usage: "The password of the bind DN",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "Report the leases to remove without changing the lease file",
				Aliases: []string{"n"},
			},
			&cli.BoolFlag{
				Name:  "no-watch",
				Usage: "Do not abort when the lease file changes during the run",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics of the run to this file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Logging level: debug, info, warn or error",
			},
		},
		Action: runPurge,
	}
}

func main() {
	if err := utils.SetupLogging("info"); err != nil {
		log.Fatal(err)
	}

	app := setupApp()
	if err := app.Run(os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
