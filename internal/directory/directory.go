package directory

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"leasepurge/internal/mac"
)

// Entry is a single search result: the distinguished name and the raw
// values of the returned attributes.
type Entry struct {
	DN         string
	Attributes map[string][][]byte
}

// Dialer opens connections to a directory server.
type Dialer interface {
	Dial(uri string) (Conn, error)
}

// Conn is an open directory connection. Searches always cover the whole
// subtree below the base.
type Conn interface {
	Bind(dn, password string) error
	Search(base, filter string, attributes []string) ([]Entry, error)
	Unbind() error
}

// Settings describes where the host entries live in the directory.
type Settings struct {
	URI          string
	Base         string
	Filter       string
	Attribute    string
	BindDN       string
	BindPassword string
}

// Provider collects the hardware addresses of the directory host entries.
type Provider struct {
	Dialer   Dialer
	Settings Settings
}

// NewProvider creates a provider querying the directory with the given settings.
func NewProvider(dialer Dialer, settings Settings) *Provider {
	return &Provider{
		Dialer:   dialer,
		Settings: settings,
	}
}

// Addresses returns the set of addresses found in the directory. A failure
// at any step is logged and results in an empty set, so callers cannot tell
// an unreachable directory from one without matching entries.
func (p *Provider) Addresses() mac.Set {
	logger := log.WithFields(log.Fields{
		"server": p.Settings.URI,
		"base":   p.Settings.Base,
	})
	logger.Info("Getting MACs from LDAP")

	conn, err := p.Dialer.Dial(p.Settings.URI)
	if err != nil {
		logger.WithError(err).Error("LDAP connection error")
		return mac.NewSet()
	}

	addrs, err := p.collect(conn)
	if err != nil {
		_ = conn.Unbind()
		logger.WithError(err).Error("LDAP search error")
		return mac.NewSet()
	}

	if err := conn.Unbind(); err != nil {
		logger.WithError(err).Error("LDAP unbind error")
		return mac.NewSet()
	}

	logger.WithField("count", addrs.Len()).Debug("Collected MACs from LDAP")
	return addrs
}

// collect searches the host entries and extracts their addresses. Values
// that are not six-octet addresses are kept as captured and logged.
func (p *Provider) collect(conn Conn) (mac.Set, error) {
	if p.Settings.BindDN != "" {
		if err := conn.Bind(p.Settings.BindDN, p.Settings.BindPassword); err != nil {
			return mac.Set{}, err
		}
	}

	entries, err := conn.Search(p.Settings.Base, p.Settings.Filter, []string{p.Settings.Attribute})
	if err != nil {
		return mac.Set{}, err
	}

	addrs := mac.NewSet()
	for _, entry := range entries {
		for name, values := range entry.Attributes {
			if !strings.EqualFold(name, p.Settings.Attribute) {
				continue
			}
			for _, value := range values {
				addr, ok := mac.ExtractFromAttribute(value)
				if !ok {
					continue
				}
				if _, valid := mac.Normalize(addr); !valid {
					log.WithFields(log.Fields{
						"dn":  entry.DN,
						"mac": addr,
					}).Warn("Not a six-octet hardware address")
				}
				addrs.Add(addr)
			}
		}
	}
	return addrs, nil
}
