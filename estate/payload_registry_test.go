package estate

import (
	"testing"

	"github.com/c360studio/semstreams/payloadregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPayloads(t *testing.T) {
	reg := payloadregistry.New()
	require.NoError(t, RegisterPayloads(reg))

	// every kind resolves its request and reply factory
	for _, k := range AllKinds {
		created := reg.Create("estate", string(k)+"-request", "v1")
		assert.NotNil(t, created, "no request factory for %s", k)
		created = reg.Create("estate", string(k)+"-reply", "v1")
		assert.NotNil(t, created, "no reply factory for %s", k)
	}

	created := reg.Create("estate", "geocode-reply", "v1")
	_, ok := created.(*GeocodeReply)
	assert.True(t, ok, "geocode-reply factory returned %T", created)
}

func TestRegisterPayloadsTwiceReportsCollisions(t *testing.T) {
	reg := payloadregistry.New()
	require.NoError(t, RegisterPayloads(reg))
	assert.Error(t, RegisterPayloads(reg))
}
