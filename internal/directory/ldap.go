package directory

import (
	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
)

// LDAPDialer connects to LDAP servers using the go-ldap client.
type LDAPDialer struct{}

// Dial connects to the server at uri, e.g. ldap://localhost or ldaps://host:636.
func (LDAPDialer) Dial(uri string) (Conn, error) {
	conn, err := ldap.DialURL(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to %s", uri)
	}
	return &ldapConn{conn: conn}, nil
}

type ldapConn struct {
	conn *ldap.Conn
}

func (c *ldapConn) Bind(dn, password string) error {
	return errors.Wrapf(c.conn.Bind(dn, password), "cannot bind as %s", dn)
}

func (c *ldapConn) Search(base, filter string, attributes []string) ([]Entry, error) {
	request := ldap.NewSearchRequest(
		base,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		filter,
		attributes,
		nil,
	)

	result, err := c.conn.Search(request)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot search %s with filter %s", base, filter)
	}

	entries := make([]Entry, 0, len(result.Entries))
	for _, e := range result.Entries {
		entry := Entry{
			DN:         e.DN,
			Attributes: make(map[string][][]byte, len(e.Attributes)),
		}
		for _, attr := range e.Attributes {
			entry.Attributes[attr.Name] = append(entry.Attributes[attr.Name], attr.ByteValues...)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (c *ldapConn) Unbind() error {
	return errors.Wrap(c.conn.Unbind(), "cannot unbind")
}
