package oxia

import (
	"os"
	"testing"

	"github.com/oxia-db/oxia/oxiad/dataserver"
)

// testServer is an Oxia endpoint for integration tests: either an embedded
// standalone server or an external one named by OXIA_SERVICE_ADDRESS.
type testServer struct {
	standalone *dataserver.Standalone
	addr       string
}

func (s *testServer) Addr() string {
	return s.addr
}

// StartTestServer returns a fresh server that is closed via t.Cleanup.
// Data lives in t.TempDir so each test starts empty.
func StartTestServer(t *testing.T) *testServer {
	t.Helper()

	if addr := os.Getenv("OXIA_SERVICE_ADDRESS"); addr != "" {
		t.Logf("Using external Oxia server at %s", addr)
		return &testServer{addr: addr}
	}

	standalone, err := dataserver.NewStandalone(dataserver.NewTestConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to start Oxia standalone server: %v", err)
	}
	t.Cleanup(func() {
		standalone.Close()
	})

	return &testServer{
		standalone: standalone,
		addr:       standalone.ServiceAddr(),
	}
}
