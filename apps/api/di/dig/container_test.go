package dig_container

import (
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/outcomes/apps/api/echo"
	"github.com/trezcool/outcomes/core/attainment"
)

func TestNew(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("TEST_DATABASE_ENGINE", "dummy")
	t.Setenv("CONFIG_DIR", t.TempDir())

	c := New()
	err := c.Invoke(func(svc *attainment.Service, server *echoapi.Server, s Store) {
		assert.NotNil(t, svc)
		assert.NotNil(t, server)
		assert.NoError(t, s.Close())
	})
	assert.NoError(t, err)
}
