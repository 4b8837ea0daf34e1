package contentaddr

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mlCID = "bafkreibxxlgv4dphmpglmyic35fezeqm5icxvgtl7fxnp3jynr4ricwxzm"

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint([]byte("certificate bytes"))
	require.NoError(t, err)
	b, err := Fingerprint([]byte("certificate bytes"))
	require.NoError(t, err)
	c, err := Fingerprint([]byte("other bytes"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	parsed, err := cid.Decode(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(cid.Raw), parsed.Type())
	assert.Equal(t, uint64(1), parsed.Version())
}

func TestResolver_ImageURL(t *testing.T) {
	r := NewResolver("")

	t.Run("rewrites ipfs scheme", func(t *testing.T) {
		assert.Equal(t, DefaultGateway+"CID", r.ImageURL("ipfs://CID"))
		assert.Equal(t, DefaultGateway+mlCID, r.ImageURL("ipfs://"+mlCID))
	})

	t.Run("only the scheme is replaced", func(t *testing.T) {
		assert.Equal(t, DefaultGateway+mlCID+"/badge.png", r.ImageURL("ipfs://"+mlCID+"/badge.png"))
		assert.Equal(t, DefaultGateway+"ipfs/"+mlCID, r.ImageURL("ipfs://ipfs/"+mlCID))
	})

	t.Run("passes other URIs through", func(t *testing.T) {
		assert.Equal(t, "https://cdn.example.com/b.png", r.ImageURL("https://cdn.example.com/b.png"))
		assert.Equal(t, "", r.ImageURL(""))
	})

	t.Run("custom gateway gains trailing slash", func(t *testing.T) {
		r := NewResolver("https://ipfs.io/ipfs")
		assert.Equal(t, "https://ipfs.io/ipfs/", r.Gateway())
		assert.Equal(t, "https://ipfs.io/ipfs/x", r.ImageURL("ipfs://x"))
	})
}

func TestParseURIAndSameAsset(t *testing.T) {
	c, err := ParseURI("ipfs://" + mlCID)
	require.NoError(t, err)
	assert.Equal(t, mlCID, c.String())

	_, err = ParseURI("https://example.com")
	assert.Error(t, err)
	_, err = ParseURI("ipfs://not-a-cid")
	assert.Error(t, err)

	assert.True(t, SameAsset("ipfs://"+mlCID, "ipfs://"+mlCID+"/"))
	assert.True(t, SameAsset("https://a", "https://a"))
	assert.False(t, SameAsset("ipfs://"+mlCID, "https://a"))
}
