package directory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

//go:generate mockgen -package=directory -destination=directorymock_test.go -source=directory.go Dialer,Conn

func testSettings() Settings {
	return Settings{
		URI:       "ldap://localhost",
		Base:      "cn=group1,cn=INTERNAL,cn=DHCP Config,dc=example,dc=org",
		Filter:    "(objectClass=dhcpHost)",
		Attribute: "dhcpHWAddress",
	}
}

// Test that the addresses of all entries are collected and normalized.
func TestAddresses(t *testing.T) {
	// Arrange
	ctrl := gomock.NewController(t)
	dialer := NewMockDialer(ctrl)
	conn := NewMockConn(ctrl)

	settings := testSettings()
	dialer.EXPECT().Dial("ldap://localhost").Return(conn, nil)
	conn.EXPECT().Search(settings.Base, settings.Filter, []string{"dhcpHWAddress"}).Return([]Entry{
		{
			DN: "cn=host1," + settings.Base,
			Attributes: map[string][][]byte{
				"dhcpHWAddress": {[]byte("ethernet AA:BB:CC:DD:EE:FF")},
			},
		},
		{
			DN: "cn=host2," + settings.Base,
			Attributes: map[string][][]byte{
				// Attribute names are matched regardless of case.
				"dhcphwaddress": {[]byte("ethernet 00:11:22:33:44:55"), []byte("garbage")},
			},
		},
		{
			DN:         "cn=host3," + settings.Base,
			Attributes: map[string][][]byte{},
		},
	}, nil)
	conn.EXPECT().Unbind().Return(nil)

	// Act
	addrs := NewProvider(dialer, settings).Addresses()

	// Assert
	require.Equal(t, []string{"00:11:22:33:44:55", "aa:bb:cc:dd:ee:ff"}, addrs.Sorted())
}

// Test that a captured value which is not a six-octet address is still
// used as found in the directory.
func TestAddressesKeepsShortAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := NewMockDialer(ctrl)
	conn := NewMockConn(ctrl)

	settings := testSettings()
	dialer.EXPECT().Dial("ldap://localhost").Return(conn, nil)
	conn.EXPECT().Search(settings.Base, settings.Filter, []string{"dhcpHWAddress"}).Return([]Entry{
		{
			DN: "cn=host1," + settings.Base,
			Attributes: map[string][][]byte{
				"dhcpHWAddress": {[]byte("ethernet AA:BB:CC")},
			},
		},
	}, nil)
	conn.EXPECT().Unbind().Return(nil)

	addrs := NewProvider(dialer, settings).Addresses()

	require.Equal(t, []string{"aa:bb:cc"}, addrs.Sorted())
}

// Test that the provider binds before searching when credentials are set.
func TestAddressesWithBind(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := NewMockDialer(ctrl)
	conn := NewMockConn(ctrl)

	settings := testSettings()
	settings.BindDN = "cn=admin,dc=example,dc=org"
	settings.BindPassword = "secret"

	dialer.EXPECT().Dial(gomock.Any()).Return(conn, nil)
	gomock.InOrder(
		conn.EXPECT().Bind("cn=admin,dc=example,dc=org", "secret").Return(nil),
		conn.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return([]Entry{
			{Attributes: map[string][][]byte{"dhcpHWAddress": {[]byte("ethernet aa:bb:cc:dd:ee:ff")}}},
		}, nil),
		conn.EXPECT().Unbind().Return(nil),
	)

	addrs := NewProvider(dialer, settings).Addresses()
	require.Equal(t, 1, addrs.Len())
}

// Test that a connection failure yields an empty set.
func TestAddressesDialError(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(nil, errors.New("connection refused"))

	addrs := NewProvider(dialer, testSettings()).Addresses()
	require.Zero(t, addrs.Len())
}

// Test that a bind failure yields an empty set and closes the connection.
func TestAddressesBindError(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := NewMockDialer(ctrl)
	conn := NewMockConn(ctrl)

	settings := testSettings()
	settings.BindDN = "cn=admin,dc=example,dc=org"

	dialer.EXPECT().Dial(gomock.Any()).Return(conn, nil)
	conn.EXPECT().Bind(gomock.Any(), gomock.Any()).Return(errors.New("invalid credentials"))
	conn.EXPECT().Unbind().Return(nil)

	addrs := NewProvider(dialer, settings).Addresses()
	require.Zero(t, addrs.Len())
}

// Test that a search failure yields an empty set and closes the connection.
func TestAddressesSearchError(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := NewMockDialer(ctrl)
	conn := NewMockConn(ctrl)

	dialer.EXPECT().Dial(gomock.Any()).Return(conn, nil)
	conn.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("no such object"))
	conn.EXPECT().Unbind().Return(nil)

	addrs := NewProvider(dialer, testSettings()).Addresses()
	require.Zero(t, addrs.Len())
}

// Test that an unbind failure discards the collected addresses.
func TestAddressesUnbindError(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := NewMockDialer(ctrl)
	conn := NewMockConn(ctrl)

	dialer.EXPECT().Dial(gomock.Any()).Return(conn, nil)
	conn.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return([]Entry{
		{Attributes: map[string][][]byte{"dhcpHWAddress": {[]byte("ethernet aa:bb:cc:dd:ee:ff")}}},
	}, nil)
	conn.EXPECT().Unbind().Return(errors.New("connection reset"))

	addrs := NewProvider(dialer, testSettings()).Addresses()
	require.Zero(t, addrs.Len())
}

// Test that dialing an invalid URI with the LDAP dialer fails.
func TestLDAPDialerInvalidURI(t *testing.T) {
	_, err := LDAPDialer{}.Dial("foo://localhost")
	require.Error(t, err)
}
