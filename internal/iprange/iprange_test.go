package iprange

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/ipscannr/internal/errors"
)

func strs(addrs []netip.Addr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func TestParseValid(t *testing.T) {
	tests := []struct {
		name string
		input string
		want []string
	}{
		{
			name: "single address",
			input: "192.168.1.7",
			want: []string{"192.168.1.7"},
		},
		{
			name: "surrounding whitespace",
			input: "  10.1.1.1 ",
			want: []string{"10.1.1.1"},
		},
		{
			name: "final octet range",
			input: "10.0.0.5-10",
			want: []string{"10.0.0.5", "10.0.0.6", "10.0.0.7", "10.0.0.8", "10.0.0.9", "10.0.0.10"},
		},
		{
			name: "full address range across octets",
			input: "10.0.0.254-10.0.1.1",
			want: []string{"10.0.0.254", "10.0.0.255", "10.0.1.0", "10.0.1.1"},
		},
		{
			name: "equal endpoints",
			input: "10.0.0.3-3",
			want: []string{"10.0.0.3"},
		},
		{
			name: "cidr includes network and broadcast",
			input: "192.168.50.0/30",
			want: []string{"192.168.50.0", "192.168.50.1", "192.168.50.2", "192.168.50.3"},
		},
		{
			name: "cidr with host bits set is masked",
			input: "192.168.50.2/30",
			want: []string{"192.168.50.0", "192.168.50.1", "192.168.50.2", "192.168.50.3"},
		},
		{
			name: "host prefix",
			input: "172.16.0.9/32",
			want: []string{"172.16.0.9"},
		},
		{
			name: "comma list keeps order and duplicates",
			input: "10.0.0.9, 10.0.0.1,,10.0.0.9,10.0.0.2-3",
			want: []string{"10.0.0.9", "10.0.0.1", "10.0.0.9", "10.0.0.2", "10.0.0.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strs(got))
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		input string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"reversed range", "10.0.0.10-10.0.0.5"},
		{"reversed final octet", "10.0.0.10-5"},
		{"octet out of range", "10.0.0.1-256"},
		{"two dashes", "10.0.0.1-2-3"},
		{"bad left side", "10.0.0-5"},
		{"bad right side", "10.0.0.1-10.0.0"},
		{"bad cidr prefix", "10.0.0.0/33"},
		{"bad cidr address", "10.0.0/24"},
		{"ipv6 single", "::1"},
		{"ipv6 cidr", "fe80::/120"},
		{"garbage", "hello"},
		{"commas only", ",, ,"},
		{"list with bad token", "10.0.0.1,nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.IsParseError(err), "expected parse error, got %v", err)
		})
	}
}

func TestParseCIDRAscendingAndSized(t *testing.T) {
	for bits := 16; bits <= 32; bits++ {
		prefix := netip.PrefixFrom(netip.MustParseAddr("10.20.0.0"), bits)
		got, err := Parse(prefix.String())
		require.NoError(t, err)
		require.Len(t, got, 1<<(32-bits), "prefix /%d", bits)

		for i := 1; i < len(got); i++ {
			require.Equal(t, -1, got[i-1].Compare(got[i]), "not strictly ascending at %d", i)
		}
		for _, a := range got {
			require.True(t, prefix.Contains(a))
		}
	}
}

func TestParseLargeNetworks(t *testing.T) {
	got, err := Parse("10.0.0.0/15")
	require.NoError(t, err)
	require.Len(t, got, 1<<17)
	assert.Equal(t, "10.0.0.0", got[0].String())
	assert.Equal(t, "10.1.255.255", got[len(got)-1].String())

	got, err = Parse("10.0.0.0-10.2.0.0")
	require.NoError(t, err)
	assert.Len(t, got, 2<<16+1)
	assert.Equal(t, "10.2.0.0", got[len(got)-1].String())
}

func TestSize(t *testing.T) {
	tests := []struct {
		input string
		want  uint64
	}{
		{"10.0.0.1", 1},
		{"10.0.0.5-10", 6},
		{"10.0.0.0/8", 1 << 24},
		{"0.0.0.0/0", 1 << 32},
		{"10.0.0.0/17,10.1.0.0/17", 1 << 16},
		{"10.0.0.1,10.0.0.1", 2},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := Size(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}

	_, err := Size("10.0.0.10-5")
	assert.True(t, errors.IsParseError(err))
}
