package main

import (
	"log"
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/cloudforge/auctionhouse/api"
	"github.com/cloudforge/auctionhouse/auth"
	"github.com/cloudforge/auctionhouse/clock"
	"github.com/cloudforge/auctionhouse/closer"
	"github.com/cloudforge/auctionhouse/db/migrations"
	"github.com/cloudforge/auctionhouse/engine"
	"github.com/cloudforge/auctionhouse/hub"
	"github.com/cloudforge/auctionhouse/importer"
	"github.com/cloudforge/auctionhouse/invoicer"
	"github.com/cloudforge/auctionhouse/notify"
	"github.com/cloudforge/auctionhouse/store"
)

func main() {
	connString := os.Getenv("POSTGRES_CONN")
	if connString == "" {
		log.Fatal("POSTGRES_CONN env variable is not set")
	}

	dbConn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		log.Fatalf("cannot connect to db: %v", err)
	}
	defer dbConn.Close()

	migrations.Run()

	clk := clock.System{}
	st := store.NewStorage(dbConn)
	h := hub.New()
	notifier := notify.NoOp{}

	inv := invoicer.New(st, clk)
	cl := closer.New(st, st, clk, h, notifier, inv)
	eng := engine.New(st, clk, h, notifier)
	imp := importer.New(st)

	// auth.NewStatic is the §1 Non-goal stub authenticator — a real
	// deployment swaps this for a session/JWT-backed Authenticator without
	// touching the handlers, since api.Handler only depends on the
	// auth.Authenticator interface.
	identities := map[string]auth.Identity{}
	authn := auth.NewStatic(identities)

	handler := api.NewHandler(st, eng, cl, inv, imp, h, authn, clk)
	router := api.NewRouter(handler)

	serverAddr := os.Getenv("SERVER_ADDRESS")
	if serverAddr == "" {
		serverAddr = "0.0.0.0:8080"
	}

	log.Printf("starting server on %s", serverAddr)
	log.Fatal(http.ListenAndServe(serverAddr, router))
}
