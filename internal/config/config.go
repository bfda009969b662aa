package config

import (
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"leasepurge/internal/directory"
)

// Config holds all application configuration
type Config struct {
	// File paths
	LeasesFile  string
	MetricsFile string

	// Directory settings
	LDAPURI          string
	LDAPBase         string
	LDAPFilter       string
	LDAPAttribute    string
	LDAPBindDN       string
	LDAPBindPassword string

	// Behavior
	DryRun       bool
	WatchChanges bool
	LogLevel     string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		LeasesFile:    "/var/lib/dhcp/dhcpd.leases",
		LDAPURI:       "ldap://localhost",
		LDAPBase:      "cn=group1,cn=INTERNAL,cn=DHCP Config,dc=instituto,dc=extremadura,dc=es",
		LDAPFilter:    "(objectClass=dhcpHost)",
		LDAPAttribute: "dhcpHWAddress",
		WatchChanges:  true,
		LogLevel:      "info",
	}
}

// LoadFromFile loads configuration from INI file. Directory settings may
// be given in the default section or in an [ldap] section without the
// "ldap" prefix.
func (c *Config) LoadFromFile(filename string) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, filename)
	if err != nil {
		return err
	}

	section := cfg.Section("")
	c.LeasesFile = section.Key("leasesfile").MustString(c.LeasesFile)
	c.MetricsFile = section.Key("metricsfile").MustString(c.MetricsFile)
	c.LDAPURI = section.Key("ldapuri").MustString(c.LDAPURI)
	c.LDAPBase = section.Key("ldapbase").MustString(c.LDAPBase)
	c.LDAPFilter = section.Key("ldapfilter").MustString(c.LDAPFilter)
	c.LDAPAttribute = section.Key("ldapattribute").MustString(c.LDAPAttribute)
	c.LDAPBindDN = section.Key("ldapbinddn").MustString(c.LDAPBindDN)
	c.LDAPBindPassword = section.Key("ldapbindpassword").MustString(c.LDAPBindPassword)
	c.DryRun = section.Key("dryrun").MustBool(c.DryRun)
	c.WatchChanges = section.Key("watchchanges").MustBool(c.WatchChanges)
	c.LogLevel = section.Key("loglevel").MustString(c.LogLevel)

	if cfg.HasSection("ldap") {
		ldap := cfg.Section("ldap")
		c.LDAPURI = ldap.Key("uri").MustString(c.LDAPURI)
		c.LDAPBase = ldap.Key("base").MustString(c.LDAPBase)
		c.LDAPFilter = ldap.Key("filter").MustString(c.LDAPFilter)
		c.LDAPAttribute = ldap.Key("attribute").MustString(c.LDAPAttribute)
		c.LDAPBindDN = ldap.Key("binddn").MustString(c.LDAPBindDN)
		c.LDAPBindPassword = ldap.Key("bindpassword").MustString(c.LDAPBindPassword)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("LEASESFILE"); v != "" {
		c.LeasesFile = v
	}
	if v := os.Getenv("METRICSFILE"); v != "" {
		c.MetricsFile = v
	}
	if v := os.Getenv("LDAPURI"); v != "" {
		c.LDAPURI = v
	}
	if v := os.Getenv("LDAPBASE"); v != "" {
		c.LDAPBase = v
	}
	if v := os.Getenv("LDAPFILTER"); v != "" {
		c.LDAPFilter = v
	}
	if v := os.Getenv("LDAPATTRIBUTE"); v != "" {
		c.LDAPAttribute = v
	}
	if v := os.Getenv("LDAPBINDDN"); v != "" {
		c.LDAPBindDN = v
	}
	if v := os.Getenv("LDAPBINDPASSWORD"); v != "" {
		c.LDAPBindPassword = v
	}
	c.DryRun = envBool("DRYRUN", c.DryRun)
	c.WatchChanges = envBool("WATCHCHANGES", c.WatchChanges)
	if v := os.Getenv("LOGLEVEL"); v != "" {
		c.LogLevel = v
	}
}

// envBool returns the boolean value of the environment variable, or current
// when it is unset or invalid.
func envBool(name string, current bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return current
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.WithError(err).WithField(name, v).Warn("Ignoring invalid environment variable")
		return current
	}
	return b
}

// DirectorySettings returns the settings of the directory query
func (c *Config) DirectorySettings() directory.Settings {
	return directory.Settings{
		URI:          c.LDAPURI,
		Base:         c.LDAPBase,
		Filter:       c.LDAPFilter,
		Attribute:    c.LDAPAttribute,
		BindDN:       c.LDAPBindDN,
		BindPassword: c.LDAPBindPassword,
	}
}

// New creates a new configuration instance. A missing or unreadable
// config file is not an error; the defaults apply.
func New(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file first
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			logger := log.WithField("file", configFile)
			if _, statErr := os.Stat(configFile); os.IsNotExist(statErr) {
				logger.Debug("No config file; using defaults")
			} else {
				logger.WithError(err).Warn("Cannot load config file; using defaults")
			}
		}
	}

	// Override with environment variables
	cfg.LoadFromEnv()

	return cfg, nil
}
