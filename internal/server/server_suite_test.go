package server_test

import (
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/joho/godotenv"

	"github.com/weftwork/weft/internal/agent"
	"github.com/weftwork/weft/internal/event"
	"github.com/weftwork/weft/internal/server"
	"github.com/weftwork/weft/internal/session"
	"github.com/weftwork/weft/internal/storage"
	"github.com/weftwork/weft/internal/store"
)

var (
	testServer *httptest.Server
	bus        *event.Bus
)

func TestServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Server Suite")
}

var _ = BeforeSuite(func() {
	_ = godotenv.Load("../../.env")

	registry := agent.NewRegistry()
	registry.Register(agent.NewEchoPlugin())

	bus = event.NewBus()
	sessions := session.NewService(
		store.New(storage.New(GinkgoT().TempDir())),
		registry,
		bus,
	)

	srv := server.New(server.DefaultConfig(), sessions, bus)
	testServer = httptest.NewServer(srv.Router())
})

var _ = AfterSuite(func() {
	if testServer != nil {
		testServer.Close()
	}
	if bus != nil {
		bus.Close()
	}
})
